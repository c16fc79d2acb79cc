package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/users"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Seed is the fixture format read by `crmctl seed`.
//
//	users:
//	  - name: Admin
//	    email: admin@example.com
//	    password: change-me
//	    role: admin
//	pools:
//	  - name: Leads Q1
//	    numbers: ["5551234", "5559876"]
type Seed struct {
	Users []SeedUser `yaml:"users"`
	Pools []SeedPool `yaml:"pools"`
}

type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type SeedPool struct {
	Name    string   `yaml:"name"`
	Numbers []string `yaml:"numbers"`
}

// SeedReport counts what a seed run changed.
type SeedReport struct {
	UsersCreated    int
	UsersExisting   int
	PoolsCreated    int
	NumbersImported int
}

// ParseSeed decodes a fixture. Unknown keys are rejected so typos surface.
func ParseSeed(r io.Reader) (Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Seed
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Seed{}, nil
		}
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

// applySeed creates users that do not exist yet and one new pool per entry.
// Pools are not matched by name; seeding twice creates them twice.
func (e *env) applySeed(ctx context.Context, s Seed) (SeedReport, error) {
	var rep SeedReport
	for _, su := range s.Users {
		_, err := e.users.Create(ctx, operator, users.CreateUserRequest{
			Name: su.Name, Email: su.Email, Password: su.Password, Role: su.Role,
		})
		switch {
		case err == nil:
			rep.UsersCreated++
		case errors.Is(err, apperr.ErrConflict):
			rep.UsersExisting++
		default:
			return rep, fmt.Errorf("seed user %q: %w", su.Email, err)
		}
	}

	for _, sp := range s.Pools {
		p, err := e.registry.CreatePool(ctx, sp.Name, nil)
		if err != nil {
			return rep, fmt.Errorf("seed pool %q: %w", sp.Name, err)
		}
		rep.PoolsCreated++
		res, err := e.registry.ImportNumbers(ctx, p.ID, sp.Numbers)
		if err != nil {
			return rep, fmt.Errorf("seed pool %q: %w", sp.Name, err)
		}
		rep.NumbersImported += res.Imported
		e.record(ctx, "dialer pool seeded", audit.TargetPool, p.ID,
			fmt.Sprintf(`{"imported":%d,"totalRows":%d}`, res.Imported, res.TotalRows))
	}
	return rep, nil
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and dialer pools from a YAML fixture",
		Long: `Load users and dialer pools from a YAML fixture.

Existing users (matched by email) are left alone. Every pool entry creates a new pool.

Examples:
  crmctl seed --file seed.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			s, err := ParseSeed(f)
			if err != nil {
				return err
			}

			ctx := context.Background()
			e, closeFn, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			rep, err := e.applySeed(ctx, s)
			printSeedReport(cmd.OutOrStdout(), rep)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed fixture (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printSeedReport(w io.Writer, rep SeedReport) {
	fmt.Fprintf(w, "%s users created: %d\n", green("✓"), rep.UsersCreated)
	if rep.UsersExisting > 0 {
		fmt.Fprintf(w, "%s users already present: %d\n", yellow("!"), rep.UsersExisting)
	}
	fmt.Fprintf(w, "%s pools created: %d (%d numbers)\n", green("✓"), rep.PoolsCreated, rep.NumbersImported)
}
