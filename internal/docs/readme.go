// Package docs renders the command reference of README.md from the command
// registry.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/keshon/lapis-music/internal/command"
)

// CommandSection writes one markdown bullet per registered command.
func CommandSection(w io.Writer, registry *command.Registry, prefix string) error {
	for _, c := range registry.GetAll() {
		root := command.Root(c)

		usage := "/" + c.Name()
		if u, ok := root.(command.UsageProvider); ok && u.Usage() != "" {
			usage += " " + u.Usage()
		}
		line := fmt.Sprintf("- **`%s`** %s", usage, c.Description())

		if a, ok := root.(command.AliasProvider); ok && len(a.Aliases()) > 0 && prefix != "" {
			aliases := make([]string, 0, len(a.Aliases()))
			for _, alias := range a.Aliases() {
				aliases = append(aliases, "`"+prefix+alias+"`")
			}
			line += " (" + strings.Join(aliases, ", ") + ")"
		}
		if p, ok := root.(command.PermissionProvider); ok && len(p.UserPermissions()) > 0 {
			line += " *admin only*"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReadme executes the template at tmplPath with the command section and
// writes the result to outPath.
func UpdateReadme(registry *command.Registry, prefix, tmplPath, outPath string) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := CommandSection(&buf, registry, prefix); err != nil {
		return err
	}

	data := struct {
		Prefix          string
		CommandSections string
	}{
		Prefix:          prefix,
		CommandSections: buf.String(),
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return err
	}
	return os.WriteFile(outPath, out.Bytes(), 0o644)
}
