package catalog

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// importFile is the layout of a connection import/export document:
//
//	connections:
//	  - name: prod-web
//	    host: 10.0.0.5
//	    username: deploy
//	    auth_method: privateKey
//	    private_key_path: ~/.ssh/id_ed25519
type importFile struct {
	Connections []Input `yaml:"connections"`
}

// ImportYAML creates every connection in the document inside a single
// transaction and returns how many were created. Unknown keys are rejected.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc importFile
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("parse import file: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, in := range doc.Connections {
			if _, err := s.create(tx, in); err != nil {
				return fmt.Errorf("connection #%d (%s): %w", i+1, in.Host, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(doc.Connections), nil
}

// ExportYAML writes every connection without its secrets, in the format
// ImportYAML reads.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	doc := importFile{Connections: make([]Input, len(records))}
	for i, r := range records {
		doc.Connections[i] = Input{
			Name:           r.Name,
			Host:           r.Host,
			Port:           r.Port,
			Username:       r.Username,
			AuthMethod:     r.AuthMethod,
			PrivateKeyPath: r.PrivateKeyPath,
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return enc.Close()
}
