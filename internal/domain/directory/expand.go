package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"routecast/internal/common"
	"routecast/internal/domain/notification"

	"golang.org/x/sync/errgroup"
)

// ExpandWithDeputies resolves the given principal ids to the effective
// notified set: each found principal plus, when includeDeputies is set, that
// principal's active deputies, deduplicated by id.
//
// Principals are fetched in one batch call; deputy relations are fetched per
// principal in parallel, capped at the batch size so the directory is never
// hit with unbounded fan-out. An id absent from the batch fetch contributes
// nothing — partial batch results are not an error. An entity without an
// email address is logged and excluded rather than aborting the expansion.
func ExpandWithDeputies(ctx context.Context, dir Directory, ids []string, includeDeputies bool) ([]notification.User, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	employees, err := dir.EmployeesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching employees: %w", err)
	}
	if len(employees) == 0 {
		return nil, nil
	}

	pairs := make([]EmployeeWithDeputies, len(employees))
	for i, e := range employees {
		pairs[i] = EmployeeWithDeputies{Employee: e}
	}

	if includeDeputies {
		var mu sync.Mutex
		byPrincipal := make(map[string][]Employee)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(len(employees))
		for _, e := range employees {
			e := e
			g.Go(func() error {
				relations, err := dir.DeputiesFor(gctx, []string{e.ID})
				if err != nil {
					return fmt.Errorf("fetching deputies for %s: %w", e.ID, err)
				}
				mu.Lock()
				for _, rel := range relations {
					byPrincipal[rel.PrincipalID] = append(byPrincipal[rel.PrincipalID], rel.Deputy)
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i := range pairs {
			pairs[i].Deputies = byPrincipal[pairs[i].Employee.ID]
		}
	}

	return flatten(pairs), nil
}

// flatten maps the expansion aggregates to a deduplicated user sequence.
func flatten(pairs []EmployeeWithDeputies) []notification.User {
	seen := make(map[string]bool)
	var users []notification.User

	add := func(e Employee) {
		if seen[e.ID] {
			return
		}
		seen[e.ID] = true

		user, err := UserFromEmployee(e)
		if err != nil {
			var invalid *common.InvalidAddressError
			if errors.As(err, &invalid) {
				slog.Warn("excluding recipient without email", "user_id", e.ID, "name", e.Name)
				return
			}
			slog.Error("excluding unmappable recipient", "user_id", e.ID, "error", err)
			return
		}
		users = append(users, user)
	}

	for _, pair := range pairs {
		add(pair.Employee)
		for _, deputy := range pair.Deputies {
			add(deputy)
		}
	}
	return users
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
