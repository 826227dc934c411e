// Package seed loads the initial tenants, admin users and demo data into a
// fresh database. Every step is an upsert keyed on a natural identifier, so
// running it twice leaves the database unchanged.
package seed

import (
	"context"
	"fmt"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SampleClientID  = "sample-client-id"
	SampleProjectID = "sample-project-id"
)

// Config controls the seeded credentials
type Config struct {
	AdminPassword string
	BcryptCost    int
}

// DefaultConfig returns the development defaults
func DefaultConfig() Config {
	return Config{
		AdminPassword: "admin123!",
		BcryptCost:    12,
	}
}

// Result lists the identifiers of the seeded rows
type Result struct {
	AlanisTenantID    string
	CherryPopTenantID string
	ClientID          string
	ProjectID         string
}

// Run seeds db and reports what it touched
func Run(ctx context.Context, db *gorm.DB, cfg Config) (*Result, error) {
	log := logger.Ctx(ctx)
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	var result Result
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alanis, err := upsertTenant(tx, model.Tenant{
			Name:   "Alanis Web Development",
			Slug:   "alanis-web-dev",
			Type:   model.TenantTypeAlanisWebDev,
			Domain: strPtr("alanis.dev"),
			Settings: datatypes.JSONMap{
				"theme":    "default",
				"features": []string{"project-management", "time-tracking", "invoicing"},
			},
		})
		if err != nil {
			return err
		}
		log.Info("Seeded tenant", zap.String("slug", alanis.Slug))

		cherryPop, err := upsertTenant(tx, model.Tenant{
			Name:   "Cherry Pop Design",
			Slug:   "cherry-pop-design",
			Type:   model.TenantTypeCherryPopDesign,
			Domain: strPtr("cherrypop.design"),
			Settings: datatypes.JSONMap{
				"theme":    "cherry",
				"features": []string{"design-portfolio", "client-gallery", "project-management"},
			},
		})
		if err != nil {
			return err
		}
		log.Info("Seeded tenant", zap.String("slug", cherryPop.Slug))

		admins := []model.User{
			{
				Email:     "admin@alanis.dev",
				Password:  string(hash),
				FirstName: "Emmanuel",
				LastName:  "Alanis",
				Role:      model.RoleSuperAdmin,
				TenantID:  alanis.ID,
			},
			{
				Email:     "admin@cherrypop.design",
				Password:  string(hash),
				FirstName: "Cherry",
				LastName:  "Admin",
				Role:      model.RoleAdmin,
				TenantID:  cherryPop.ID,
			},
		}
		for _, admin := range admins {
			admin.IsActive = true
			var user model.User
			if err := tx.Where(model.User{Email: admin.Email}).Attrs(admin).FirstOrCreate(&user).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", admin.Email, err)
			}
			log.Info("Seeded admin user", zap.String("email", user.Email))
		}

		var client model.Client
		sampleClient := model.Client{
			ID:       SampleClientID,
			Name:     "Sample Client",
			Email:    "client@example.com",
			Company:  strPtr("Example Corp"),
			Phone:    strPtr("+1234567890"),
			TenantID: alanis.ID,
		}
		if err := tx.Where(model.Client{ID: SampleClientID}).Attrs(sampleClient).FirstOrCreate(&client).Error; err != nil {
			return fmt.Errorf("seed sample client: %w", err)
		}

		var project model.Project
		sampleProject := model.Project{
			ID:          SampleProjectID,
			Name:        "Sample Web Development Project",
			Description: strPtr("A sample project for demonstration purposes"),
			QuotedHours: 40,
			HourlyRate:  decimal.NewFromFloat(75),
			ClientID:    client.ID,
			TenantID:    alanis.ID,
		}
		if err := tx.Where(model.Project{ID: SampleProjectID}).Attrs(sampleProject).FirstOrCreate(&project).Error; err != nil {
			return fmt.Errorf("seed sample project: %w", err)
		}
		log.Info("Seeded sample client and project")

		result = Result{
			AlanisTenantID:    alanis.ID,
			CherryPopTenantID: cherryPop.ID,
			ClientID:          client.ID,
			ProjectID:         project.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func upsertTenant(tx *gorm.DB, attrs model.Tenant) (*model.Tenant, error) {
	attrs.IsActive = true
	var tenant model.Tenant
	if err := tx.Where(model.Tenant{Slug: attrs.Slug}).Attrs(attrs).FirstOrCreate(&tenant).Error; err != nil {
		return nil, fmt.Errorf("seed tenant %s: %w", attrs.Slug, err)
	}
	return &tenant, nil
}

func strPtr(s string) *string { return &s }
