package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/patrol-auth/internal/application/account"
	"github.com/patrol-auth/internal/domain"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Accounts []seedAccount `yaml:"accounts"`
}

// seedAccount is one account to provision. Parent is the contact of the
// provisioning actor; empty means the default super admin.
type seedAccount struct {
	Role         string `yaml:"role"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Phone        string `yaml:"phone"`
	Password     string `yaml:"password"`
	State        string `yaml:"state"`
	AreaCity     string `yaml:"area_city"`
	SupervisorID string `yaml:"supervisor_id"`
	Parent       string `yaml:"parent"`
}

type seedResult struct {
	Created int
	Skipped int
}

type contactResolver interface {
	FindByContact(ctx context.Context, contact string) (domain.Identity, error)
}

func parseSeedFile(r io.Reader) (*seedFile, error) {
	var sf seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &sf, nil
}

// seed provisions every account in order so later entries may name earlier
// ones as parent. Accounts whose contact is already registered are skipped.
func seed(ctx context.Context, svc account.Service, resolver contactResolver, superAdmin string, sf *seedFile) (seedResult, error) {
	var res seedResult
	for i, a := range sf.Accounts {
		parent := a.Parent
		if parent == "" {
			parent = superAdmin
		}
		actor, err := resolver.FindByContact(ctx, domain.NormalizeContact(parent))
		if err != nil {
			return res, fmt.Errorf("account %d: resolve parent %q: %w", i, parent, err)
		}
		_, err = svc.Provision(ctx, actor, domain.ProvisionRequest{
			Role:         a.Role,
			Name:         a.Name,
			Email:        a.Email,
			Phone:        a.Phone,
			Password:     a.Password,
			State:        a.State,
			AreaCity:     a.AreaCity,
			SupervisorID: a.SupervisorID,
		})
		switch {
		case errors.Is(err, domain.ErrConflict):
			slog.Info("seed account exists, skipping", "index", i, "role", a.Role)
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("account %d: %w", i, err)
		default:
			res.Created++
		}
	}
	return res, nil
}
