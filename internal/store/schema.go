// ABOUTME: Embedded bootstrap scripts for tenant databases
// ABOUTME: Schema first, then seed data, in the order the provisioner runs them

package store

import (
	"embed"
	"fmt"

	"github.com/2389/tenantdb/internal/tenant"
)

//go:embed scripts/*.sql
var scriptFS embed.FS

// bootstrapOrder lists the embedded scripts in execution order.
var bootstrapOrder = []string{"create.sql", "data.sql"}

// BootstrapScripts returns the embedded schema and seed scripts.
func BootstrapScripts() ([]tenant.Script, error) {
	scripts := make([]tenant.Script, 0, len(bootstrapOrder))
	for _, name := range bootstrapOrder {
		data, err := scriptFS.ReadFile("scripts/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded script %s: %w", name, err)
		}
		scripts = append(scripts, tenant.ParseScript(name, string(data)))
	}
	return scripts, nil
}
