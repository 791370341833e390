package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/brokerchat/internal/profile"
)

var ErrProfileNotFound = errors.New("profile not found")

// LoadProfile reads a business profile and its ordered lists. Empty fields are
// filled from profile.Default.
func (s *Store) LoadProfile(ctx context.Context, slug string) (profile.Profile, error) {
	var p profile.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT slug, company_name, owner_name, industry, location, phone, email, website,
		       business_hours, established, license_number, welcome_message
		FROM business_profiles WHERE slug = $1`, slug,
	).Scan(
		&p.Slug, &p.CompanyName, &p.OwnerName, &p.Industry, &p.Location, &p.Phone, &p.Email, &p.Website,
		&p.BusinessHours, &p.Established, &p.LicenseNumber, &p.WelcomeMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, fmt.Errorf("%s: %w", slug, ErrProfileNotFound)
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("select profile: %w", err)
	}

	if p.Services, err = s.names(ctx, "profile_services", slug); err != nil {
		return profile.Profile{}, err
	}
	if p.FormTemplates, err = s.names(ctx, "form_templates", slug); err != nil {
		return profile.Profile{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT text, icon, category FROM quick_actions
		WHERE profile_slug = $1 ORDER BY position`, slug)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("select quick actions: %w", err)
	}
	p.QuickActions, err = pgx.CollectRows(rows, pgx.RowToStructByPos[profile.QuickAction])
	if err != nil {
		return profile.Profile{}, fmt.Errorf("scan quick actions: %w", err)
	}

	return p.FillDefaults(), nil
}

// names reads the ordered name column of a per-profile list table.
func (s *Store) names(ctx context.Context, table, slug string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT name FROM %s WHERE profile_slug = $1 ORDER BY position`, pgx.Identifier{table}.Sanitize()),
		slug)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return out, nil
}

// SaveProfile upserts p and replaces its ordered lists in one transaction.
func (s *Store) SaveProfile(ctx context.Context, p profile.Profile) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO business_profiles (slug, company_name, owner_name, industry, location, phone, email, website,
		                               business_hours, established, license_number, welcome_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (slug) DO UPDATE SET
			company_name = EXCLUDED.company_name, owner_name = EXCLUDED.owner_name,
			industry = EXCLUDED.industry, location = EXCLUDED.location, phone = EXCLUDED.phone,
			email = EXCLUDED.email, website = EXCLUDED.website, business_hours = EXCLUDED.business_hours,
			established = EXCLUDED.established, license_number = EXCLUDED.license_number,
			welcome_message = EXCLUDED.welcome_message`,
		p.Slug, p.CompanyName, p.OwnerName, p.Industry, p.Location, p.Phone, p.Email, p.Website,
		p.BusinessHours, p.Established, p.LicenseNumber, p.WelcomeMessage,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	for _, table := range []string{"profile_services", "form_templates", "quick_actions"} {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE profile_slug = $1`, pgx.Identifier{table}.Sanitize()), p.Slug); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	batch := &pgx.Batch{}
	for i, name := range p.Services {
		batch.Queue(`INSERT INTO profile_services (profile_slug, position, name) VALUES ($1, $2, $3)`, p.Slug, i, name)
	}
	for i, name := range p.FormTemplates {
		batch.Queue(`INSERT INTO form_templates (profile_slug, position, name) VALUES ($1, $2, $3)`, p.Slug, i, name)
	}
	for i, qa := range p.QuickActions {
		batch.Queue(`INSERT INTO quick_actions (profile_slug, position, text, icon, category) VALUES ($1, $2, $3, $4, $5)`,
			p.Slug, i, qa.Text, qa.Icon, qa.Category)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert profile lists: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
