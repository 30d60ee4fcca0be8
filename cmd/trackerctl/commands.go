package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/remote"
	"github.com/2beens/gymtracker/internal/workout"
	"github.com/2beens/gymtracker/pkg"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const generatedAccessCodeLength = 9

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{Use: "migrate", Short: "Run schema migrations"}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := connParams(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := db.MigrateUp(db.ConnString(params)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return errors.New("--steps must be at least 1")
			}
			params, err := connParams(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := db.MigrateDown(db.ConnString(params), steps); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(down)

	return migrateCmd
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var name, accessCode string
	var seed bool
	add := &cobra.Command{
		Use:   "add --name <name>",
		Short: "Create a user, optionally with the default routine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			code := strings.TrimSpace(accessCode)
			if code == "" {
				generated, err := pkg.GenerateRandomString(generatedAccessCodeLength)
				if err != nil {
					return fmt.Errorf("generate access code: %w", err)
				}
				code = generated
			}

			return withRepo(cmd.Context(), opts, func(repo *remote.Repo) error {
				user, err := repo.CreateUser(cmd.Context(), name, code)
				if errors.Is(err, remote.ErrAccessCodeTaken) {
					return fmt.Errorf("access code already used by another user")
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user created\nid: %s\nname: %s\naccess code: %s\n", user.ID, user.Name, user.AccessCode)

				if !seed {
					return nil
				}
				if err := repo.SeedRoutine(cmd.Context(), user.ID, defaultRoutine()); err != nil {
					return fmt.Errorf("seed routine: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "default routine seeded")
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "user display name")
	add.Flags().StringVar(&accessCode, "code", "", "access code (generated when empty)")
	add.Flags().BoolVar(&seed, "seed", true, "seed the default push / pull / legs routine")
	userCmd.AddCommand(add)

	userCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepo(cmd.Context(), opts, func(repo *remote.Repo) error {
				users, err := repo.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				if len(users) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no users")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tNAME")
				for _, u := range users {
					_, _ = fmt.Fprintf(w, "%s\t%s\n", u.ID, u.Name)
				}
				return w.Flush()
			})
		},
	})

	return userCmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var userID string
	seedCmd := &cobra.Command{
		Use:   "seed --user-id <id>",
		Short: "Append the default routine to a user's days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("--user-id must be a uuid: %w", err)
			}
			return withRepo(cmd.Context(), opts, func(repo *remote.Repo) error {
				if err := repo.SeedRoutine(cmd.Context(), userID, defaultRoutine()); err != nil {
					return err
				}
				log.Infof("default routine seeded for user [%s]", userID)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "default routine seeded")
				return nil
			})
		},
	}
	seedCmd.Flags().StringVar(&userID, "user-id", "", "user id")
	return seedCmd
}

// defaultRoutine uses fresh uuids, day and workout ids are unique across all users in postgres.
func defaultRoutine() []workout.Day {
	return workout.DefaultRoutine(func(string) string {
		return uuid.NewString()
	})
}
