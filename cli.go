package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sbjang123456/electron-ssh/internal/catalog"
	"github.com/sbjang123456/electron-ssh/internal/config"
	"github.com/sbjang123456/electron-ssh/internal/crypto"
	"github.com/sbjang123456/electron-ssh/internal/database"
	"github.com/sbjang123456/electron-ssh/internal/sshtransport"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

// runCLICommand runs one catalog maintenance command against the
// configured database and returns the process exit code.
func runCLICommand(command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	var (
		in             catalog.Input
		authMethod     string
		promptPassword bool
		file           string
	)
	switch command {
	case "add-connection":
		fs.StringVar(&in.Name, "name", "", "Display name (default user@host)")
		fs.StringVarP(&in.Host, "host", "H", "", "Remote host")
		fs.IntVarP(&in.Port, "port", "p", 22, "Remote port")
		fs.StringVarP(&in.Username, "username", "u", "", "Login user")
		fs.StringVar(&authMethod, "auth", string(sshtransport.AuthPassword), "Auth method: password or privateKey")
		fs.StringVarP(&in.PrivateKeyPath, "key", "i", "", "Private key file (privateKey auth)")
		fs.BoolVar(&promptPassword, "prompt-password", false, "Prompt for the password or key passphrase")
	case "import", "export":
		fs.StringVarP(&file, "file", "f", "", "YAML file (export defaults to stdout)")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if file == "" && fs.NArg() > 0 {
		file = fs.Arg(0)
	}

	config.Load()
	if err := database.Init(config.Cfg.DatabasePath); err != nil {
		fmt.Fprintf(os.Stderr, "Database init: %v\n", err)
		return 1
	}
	defer database.Close()

	cipher, err := crypto.LoadOrCreate(database.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encryption key init: %v\n", err)
		return 1
	}
	store := catalog.New(database.DB, cipher)
	ctx := context.Background()

	switch command {
	case "import":
		if file == "" {
			fmt.Fprintln(os.Stderr, "Usage: electron-ssh --import <file.yaml>")
			return 2
		}
		f, err := os.Open(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Open %s: %v\n", file, err)
			return 1
		}
		defer f.Close()
		n, err := store.ImportYAML(ctx, f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
			return 1
		}
		fmt.Printf("Imported %d connection(s) from %s.\n", n, file)

	case "export":
		out := os.Stdout
		if file != "" {
			f, err := os.Create(file)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Create %s: %v\n", file, err)
				return 1
			}
			defer f.Close()
			out = f
		}
		if err := store.ExportYAML(ctx, out); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			return 1
		}

	case "add-connection":
		in.AuthMethod = sshtransport.AuthMethod(authMethod)
		if promptPassword {
			secret, err := promptSecret(in.AuthMethod)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				return 1
			}
			if in.AuthMethod == sshtransport.AuthPrivateKey {
				in.Passphrase = secret
			} else {
				in.Password = secret
			}
		}
		rec, err := store.Create(ctx, in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Add connection: %v\n", err)
			return 1
		}
		fmt.Printf("Connection '%s' created with id %s.\n", rec.Name, rec.ID)

	case "list":
		records, err := store.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List connections: %v\n", err)
			return 1
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTARGET\tAUTH\tLAST CONNECTED")
		for _, r := range records {
			last := "never"
			if r.LastConnectedAt != nil {
				last = r.LastConnectedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s@%s:%d\t%s\t%s\n", r.ID, r.Name, r.Username, r.Host, r.Port, r.AuthMethod, last)
		}
		tw.Flush()
	}
	return 0
}

func promptSecret(method sshtransport.AuthMethod) (string, error) {
	label := "SSH password: "
	if method == sshtransport.AuthPrivateKey {
		label = "Key passphrase: "
	}
	fmt.Fprint(os.Stderr, label)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(pass), nil
}
