package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/patrol-auth/internal/application/account"
	"github.com/patrol-auth/internal/application/credential"
	"github.com/patrol-auth/internal/config"
	"github.com/patrol-auth/internal/infrastructure/dynamo"
	"github.com/patrol-auth/internal/infrastructure/storage"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	root := &cobra.Command{
		Use:          "authctl",
		Short:        "Operator tooling for the patrol auth service",
		SilenceUsage: true,
	}

	// hash-password
	var cost int
	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw := ""
			if len(args) == 1 {
				pw = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				pw = strings.TrimRight(line, "\r\n")
			}
			if pw == "" {
				return fmt.Errorf("password is empty")
			}
			h, err := credential.NewDefaultHasher(credential.Options{Cost: cost})
			if err != nil {
				return err
			}
			hash, err := h.Hash(cmd.Context(), pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	hashCmd.Flags().IntVar(&cost, "cost", cfg.BcryptCost, "bcrypt cost (env BCRYPT_COST)")

	// bootstrap-tables
	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap-tables",
		Short: "Create the DynamoDB tables if they don't exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dynamo.NewClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := dynamo.Bootstrap(cmd.Context(), client, cfg.DynamoTables); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	// seed
	var seedFile string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision the accounts listed in a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedFile == "" {
				return fmt.Errorf("--file is required")
			}
			f, err := os.Open(seedFile)
			if err != nil {
				return err
			}
			defer f.Close()
			sf, err := parseSeedFile(f)
			if err != nil {
				return err
			}

			stores, err := storage.Open(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			resolver := stores.Resolver()
			hasher, err := credential.NewDefaultHasher(credential.Options{Cost: cfg.BcryptCost})
			if err != nil {
				return err
			}
			svc := account.NewService(account.ServiceDeps{
				Accounts:    resolver,
				Hasher:      hasher,
				RefreshRepo: stores.Refresh,
			})
			if err := svc.EnsureSuperAdmin(cmd.Context(), cfg.DefaultSuperAdminEmail, cfg.DefaultSuperAdminPassword, cfg.DefaultSuperAdminName); err != nil {
				return err
			}
			res, err := seed(cmd.Context(), svc, resolver, cfg.DefaultSuperAdminEmail, sf)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created=%d skipped=%d\n", res.Created, res.Skipped)
			return nil
		},
	}
	seedCmd.Flags().StringVar(&seedFile, "file", "", "path to the seed YAML file")

	root.AddCommand(hashCmd, bootstrapCmd, seedCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
