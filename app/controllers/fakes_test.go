package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/app/repository"
	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
	"github.com/ManuelReschke/BlogHub/internal/pkg/usercontext"
)

type fakeWebhookHandler struct {
	ack        billing.Ack
	err        error
	gotPayload []byte
	gotHeader  string
}

func (f *fakeWebhookHandler) HandleEvent(ctx context.Context, payload []byte, header string) (billing.Ack, error) {
	f.gotPayload = payload
	f.gotHeader = header
	return f.ack, f.err
}

type fakeCheckout struct {
	session *billing.CheckoutSession
	err     error
	calls   [][3]string
}

func (f *fakeCheckout) StartCheckout(ctx context.Context, userID, email, planID string) (*billing.CheckoutSession, error) {
	f.calls = append(f.calls, [3]string{userID, email, planID})
	return f.session, f.err
}

type fakeEntitlements struct {
	records map[string]models.Entitlement
	err     error
}

func (f *fakeEntitlements) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.records[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func premiumReader(userIDs ...string) *fakeEntitlements {
	f := &fakeEntitlements{records: map[string]models.Entitlement{}}
	for _, id := range userIDs {
		f.records[id] = models.Entitlement{UserID: id, Status: string(entitlements.StatusActive), IsPremium: true, PlanID: "monthly"}
	}
	return f
}

type fakePosts struct {
	posts     []models.Post
	err       error
	writeErr  error
	lastQuery repository.PostQuery
}

func (f *fakePosts) Create(post *models.Post) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if post.ID == "" {
		post.ID = "id-" + post.Slug
	}
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakePosts) GetBySlug(slug string) (*models.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.posts {
		if f.posts[i].Slug == slug {
			p := f.posts[i]
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePosts) ListPublished(q repository.PostQuery) ([]models.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastQuery = q
	var out []models.Post
	for _, p := range f.posts {
		if p.PublishedAt == nil || p.PublishedAt.After(time.Now()) {
			continue
		}
		if p.Visibility == string(entitlements.VisibilityPrivate) && p.AuthorID != q.ViewerID {
			continue
		}
		if q.Search != "" && !strings.Contains(p.Title+" "+p.Excerpt+" "+p.Content, q.Search) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePosts) CountPublished(q repository.PostQuery) (int64, error) {
	posts, err := f.ListPublished(q)
	return int64(len(posts)), err
}

func (f *fakePosts) Update(post *models.Post) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.posts {
		if f.posts[i].ID == post.ID {
			f.posts[i] = *post
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakePosts) Delete(id string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.posts {
		if f.posts[i].ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return nil
}

// asUser installs a fixed caller the way UserContextMiddleware would.
func asUser(userID, email string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     userID,
			Email:      email,
			IsLoggedIn: userID != "",
		})
		return c.Next()
	}
}

func publishedPost(slug, author string, vis entitlements.Visibility) models.Post {
	at := time.Now().Add(-time.Hour)
	return models.Post{
		ID:          "id-" + slug,
		AuthorID:    author,
		Title:       strings.ToUpper(slug),
		Slug:        slug,
		Excerpt:     "excerpt of " + slug,
		Content:     "full content of " + slug,
		Visibility:  string(vis),
		Tags:        "go,billing",
		PublishedAt: &at,
	}
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}
