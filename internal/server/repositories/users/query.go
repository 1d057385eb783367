package users

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	publicColumns = "id, email, firstname, lastname, avatar_asset_id, avatar_url, created_at, updated_at"
	secretColumns = publicColumns + ", password_hash, refresh_token_hash"

	// fullName mirrors how names are displayed: first and last joined by one space.
	fullName = "coalesce(firstname, '') || ' ' || coalesce(lastname, '')"
)

func columns(p Projection) string {
	if p == WithoutSecrets {
		return publicColumns
	}
	return secretColumns
}

// likeEscaper makes user text literal inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// whereClause renders f as SQL starting at placeholder $start. ok is false
// when an id in f cannot match any row, so the caller can skip the query.
func whereClause(f Filter, start int) (clause string, args []any, ok bool) {
	var conds []string
	n := start

	if f.ID != "" {
		if _, err := uuid.Parse(f.ID); err != nil {
			return "", nil, false
		}
		conds = append(conds, fmt.Sprintf("id = $%d", n))
		args = append(args, f.ID)
		n++
	}
	if f.Email != "" {
		conds = append(conds, fmt.Sprintf("email = $%d", n))
		args = append(args, f.Email)
		n++
	}
	if f.ExcludeID != "" {
		// an id that is not a uuid excludes nothing
		if _, err := uuid.Parse(f.ExcludeID); err == nil {
			conds = append(conds, fmt.Sprintf("id <> $%d", n))
			args = append(args, f.ExcludeID)
			n++
		}
	}
	if f.Search != "" {
		conds = append(conds, fmt.Sprintf(`(%s ILIKE $%d ESCAPE '\' OR email ILIKE $%d ESCAPE '\')`, fullName, n, n))
		args = append(args, containsPattern(f.Search))
	}

	if len(conds) == 0 {
		return "TRUE", nil, true
	}
	return strings.Join(conds, " AND "), args, true
}

// setClause renders c as an UPDATE assignment list starting at placeholder $1.
func setClause(c Changes) (string, []any) {
	var sets []string
	var args []any

	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if c.Firstname != nil {
		add("firstname", *c.Firstname)
	}
	if c.Lastname != nil {
		add("lastname", *c.Lastname)
	}
	if c.Avatar != nil {
		add("avatar_asset_id", c.Avatar.AssetID)
		add("avatar_url", c.Avatar.URL)
	}
	if c.PasswordHash != nil {
		add("password_hash", *c.PasswordHash)
	}
	if c.ClearRefreshToken {
		sets = append(sets, "refresh_token_hash = NULL")
	} else if c.RefreshTokenHash != nil {
		add("refresh_token_hash", *c.RefreshTokenHash)
	}

	sets = append(sets, "updated_at = now()")
	return strings.Join(sets, ", "), args
}
