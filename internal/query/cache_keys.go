package query

import "github.com/mmcdole/marquee/internal/domain"

// Read operation names; the first element of every key
const (
	// OpTitles is the family of title lists: (titles) and (titles,type,{type})
	OpTitles = "titles"

	// OpTitle is a single title: (title,{id})
	OpTitle = "title"

	// OpSearch is a search result list: (search,{text})
	OpSearch = "search"

	// OpRatings is a title's rating aggregate: (ratings,{id})
	OpRatings = "ratings"

	// OpProfile is the caller's profile: (profile,{principal})
	OpProfile = "profile"

	// OpRole is the caller's role: (role,{principal})
	OpRole = "role"

	// OpIsAdmin is the admin verdict derived from the role: (isAdmin,{principal})
	OpIsAdmin = "isAdmin"
)

func TitlesKey() Key { return NewKey(OpTitles) }

func TitlesByTypeKey(t domain.TitleType) Key { return NewKey(OpTitles, "type", string(t)) }

func SearchKey(text string) Key { return NewKey(OpSearch, text) }

func TitleKey(id domain.TitleID) Key { return NewKey(OpTitle, id.String()) }

func RatingsKey(id domain.TitleID) Key { return NewKey(OpRatings, id.String()) }

func ProfileKey(p domain.Principal) Key { return NewKey(OpProfile, string(p)) }

func RoleKey(p domain.Principal) Key { return NewKey(OpRole, string(p)) }

func IsAdminKey(p domain.Principal) Key { return NewKey(OpIsAdmin, string(p)) }

// IdentityPatterns returns the patterns of every key scoped to "current user".
// They are invalidated whenever an identity session ends.
func IdentityPatterns() []Pattern {
	return []Pattern{Family(OpProfile), Family(OpRole), Family(OpIsAdmin)}
}
