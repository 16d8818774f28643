package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPremium(t *testing.T) {
	tests := []struct {
		in   Status
		want bool
	}{
		{in: StatusActive, want: true},
		{in: StatusTrialing, want: true},
		{in: "ACTIVE", want: true},
		{in: StatusPastDue, want: false},
		{in: StatusCanceled, want: false},
		{in: StatusIncomplete, want: false},
		{in: StatusUnpaid, want: false},
		{in: StatusNone, want: false},
		{in: "something_new", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPremium(tt.in), "IsPremium(%q)", tt.in)
	}
}

func TestStatusKnown(t *testing.T) {
	assert.True(t, StatusIncompleteExpired.Known())
	assert.True(t, StatusNone.Known())
	assert.False(t, Status("galactic").Known())
}

func TestCanView(t *testing.T) {
	anon := Viewer{}
	reader := Viewer{UserID: "reader"}
	premium := Viewer{UserID: "patron", IsPremium: true}
	author := Viewer{UserID: "author"}

	assert.True(t, CanView(VisibilityPublic, "author", anon))

	assert.False(t, CanView(VisibilityPremium, "author", anon))
	assert.False(t, CanView(VisibilityPremium, "author", reader))
	assert.True(t, CanView(VisibilityPremium, "author", premium))
	assert.True(t, CanView(VisibilityPremium, "author", author))

	assert.False(t, CanView(VisibilityPrivate, "author", premium))
	assert.True(t, CanView(VisibilityPrivate, "author", author))
	assert.False(t, CanView(VisibilityPrivate, "", anon))
}

func TestParseVisibilityDefaultsToPrivate(t *testing.T) {
	assert.Equal(t, VisibilityPremium, ParseVisibility(" Premium "))
	assert.Equal(t, VisibilityPrivate, ParseVisibility("draft"))
}

func TestIsListed(t *testing.T) {
	assert.True(t, IsListed(VisibilityPremium, "author", Viewer{}))
	assert.False(t, IsListed(VisibilityPrivate, "author", Viewer{UserID: "other"}))
	assert.True(t, IsListed(VisibilityPrivate, "author", Viewer{UserID: "author"}))
}
