package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
	"github.com/tbourn/go-recruit-uploads/internal/services"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// readTargetList loads a target list document. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON; "-" reads JSON from
// stdin. The result is the JSON form of the document.
func readTargetList(path string, stdin io.Reader) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
		return out, nil
	}
	return b, nil
}

// decodeTargets accepts either a bare list or an object with an "uploads"
// key, mirroring the PUT /uploads body.
func decodeTargets(raw []byte) ([]services.AttachmentInput, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var body struct {
			Uploads json.RawMessage `json:"uploads"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return nil, fmt.Errorf("parse target list: %w", err)
		}
		trimmed = body.Uploads
	}
	return services.DecodeTargetList(trimmed)
}

// uploadView is the printable shape of an attachment.
type uploadView struct {
	ID          string    `json:"id" yaml:"id"`
	Category    string    `json:"category" yaml:"category"`
	DisplayName string    `json:"displayName" yaml:"displayName"`
	PrimaryLink *string   `json:"primaryLink" yaml:"primaryLink"`
	PreviewLink *string   `json:"previewLink" yaml:"previewLink"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func toViews(rows []domain.Attachment) []uploadView {
	out := make([]uploadView, 0, len(rows))
	for _, r := range rows {
		out = append(out, uploadView{
			ID:          r.ID,
			Category:    string(r.Category),
			DisplayName: r.DisplayName,
			PrimaryLink: r.PrimaryLink,
			PreviewLink: r.PreviewLink,
			CreatedAt:   r.CreatedAt.UTC(),
			UpdatedAt:   r.UpdatedAt.UTC(),
		})
	}
	return out
}

func render(w io.Writer, format string, rows []domain.Attachment) error {
	views := toViews(rows)
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tNAME\tCREATED\tLINK")
	for _, v := range views {
		link := "-"
		if v.PrimaryLink != nil {
			link = *v.PrimaryLink
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Category, v.DisplayName, v.CreatedAt.Format(time.RFC3339), link)
	}
	return tw.Flush()
}
