package entitlements

import "strings"

// Status mirrors the payment provider's subscription status vocabulary.
// Values are stored as received and never reinterpreted.
type Status string

const (
	StatusNone              Status = ""
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusUnpaid            Status = "unpaid"
	StatusPaused            Status = "paused"
)

// NormalizeStatus lower-cases and trims a provider status.
func NormalizeStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether s is part of the provider vocabulary.
func (s Status) Known() bool {
	switch s {
	case StatusNone, StatusActive, StatusTrialing, StatusPastDue, StatusCanceled,
		StatusIncomplete, StatusIncompleteExpired, StatusUnpaid, StatusPaused:
		return true
	default:
		return false
	}
}

// IsPremium is the only place premium access is derived from a status.
func IsPremium(s Status) bool {
	switch NormalizeStatus(string(s)) {
	case StatusActive, StatusTrialing:
		return true
	default:
		return false
	}
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityPremium Visibility = "premium"
)

// ParseVisibility falls back to private for unknown values so nothing leaks.
func ParseVisibility(raw string) Visibility {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(raw))); v {
	case VisibilityPublic, VisibilityPremium, VisibilityPrivate:
		return v
	default:
		return VisibilityPrivate
	}
}

// Viewer is the subset of the requesting user relevant for access checks.
// The zero value is an anonymous reader.
type Viewer struct {
	UserID    string
	IsPremium bool
}

// CanView decides whether viewer may read the full content of a post.
func CanView(visibility Visibility, authorID string, viewer Viewer) bool {
	isAuthor := viewer.UserID != "" && viewer.UserID == authorID
	switch ParseVisibility(string(visibility)) {
	case VisibilityPublic:
		return true
	case VisibilityPremium:
		return isAuthor || viewer.IsPremium
	default:
		return isAuthor
	}
}

// IsListed reports whether a post shows up in listings for viewer at all.
// Premium posts are listed (with excerpt only) so readers can discover them.
func IsListed(visibility Visibility, authorID string, viewer Viewer) bool {
	if ParseVisibility(string(visibility)) == VisibilityPrivate {
		return viewer.UserID != "" && viewer.UserID == authorID
	}
	return true
}
