package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// liveSmartCodes selects the smart_code of every live row in one tenant.
// ?1 is the organization and ?2 the LIKE pattern applied to every table.
const liveSmartCodes = `
	SELECT smart_code FROM entities
	 WHERE organization_id = ?1 AND deleted_at IS NULL AND smart_code LIKE ?2 ESCAPE '\'
	UNION ALL
	SELECT d.smart_code FROM dynamic_data d
	 JOIN entities e ON e.id = d.entity_id
	 WHERE d.organization_id = ?1 AND e.deleted_at IS NULL AND d.smart_code LIKE ?2 ESCAPE '\'
	UNION ALL
	SELECT smart_code FROM relationships
	 WHERE organization_id = ?1 AND smart_code LIKE ?2 ESCAPE '\'
	UNION ALL
	SELECT smart_code FROM transactions
	 WHERE organization_id = ?1 AND deleted_at IS NULL AND smart_code LIKE ?2 ESCAPE '\'
	UNION ALL
	SELECT smart_code FROM transaction_lines
	 WHERE organization_id = ?1 AND smart_code LIKE ?2 ESCAPE '\'
`

// CountSmartCode counts live records of org, across all five record tables,
// that carry exactly code.
func (s *Store) CountSmartCode(ctx context.Context, org, code string) (int, error) {
	codes, err := s.smartCodesLike(ctx, org, likeEscape(code))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range codes {
		if c == code {
			n++
		}
	}
	return n, nil
}

// LatestSmartCodeVersion returns the highest N among live codes of org
// spelled body + ".vN", or 0 when none exist.
func (s *Store) LatestSmartCodeVersion(ctx context.Context, org, body string) (int, error) {
	prefix := body + ".v"
	codes, err := s.smartCodesLike(ctx, org, likeEscape(prefix)+"%")
	if err != nil {
		return 0, err
	}
	latest := 0
	for _, c := range codes {
		// LIKE folds ASCII case; the match must be exact.
		if !strings.HasPrefix(c, prefix) {
			continue
		}
		v, err := strconv.Atoi(c[len(prefix):])
		if err != nil || v < 1 {
			continue
		}
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

// ProviderRegistered reports whether a live system_provider entity with
// entityCode exists in systemOrg.
func (s *Store) ProviderRegistered(ctx context.Context, systemOrg, entityCode string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entities
		WHERE organization_id = ? AND entity_type = 'system_provider' AND entity_code = ?
		  AND deleted_at IS NULL AND status = 'active'
	`, systemOrg, entityCode).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("provider lookup: %w", err)
	}
	return n > 0, nil
}

func (s *Store) smartCodesLike(ctx context.Context, org, pattern string) ([]string, error) {
	return collect(ctx, s.q, "smart code usage", func(sc scanner) (string, error) {
		var c string
		err := sc.Scan(&c)
		return c, err
	}, liveSmartCodes, org, pattern)
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
