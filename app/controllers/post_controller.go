package controllers

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BlogHub/app/models"
	"github.com/ManuelReschke/BlogHub/app/repository"
	"github.com/ManuelReschke/BlogHub/internal/pkg/entitlements"
	"github.com/ManuelReschke/BlogHub/internal/pkg/usercontext"
)

// PostController serves the blog with premium gating and lets authors
// manage their own posts.
type PostController struct {
	posts        repository.PostRepository
	entitlements EntitlementReader
	validate     *validator.Validate
}

func NewPostController(posts repository.PostRepository, reader EntitlementReader) *PostController {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return &PostController{posts: posts, entitlements: reader, validate: v}
}

type postSummary struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Visibility  string     `json:"visibility"`
	Tags        []string   `json:"tags"`
	PublishedAt *time.Time `json:"published_at"`
	Locked      bool       `json:"locked"`
}

type postDetail struct {
	postSummary
	Content string `json:"content"`
}

func newPostSummary(p *models.Post, viewer entitlements.Viewer) postSummary {
	vis := entitlements.ParseVisibility(p.Visibility)
	return postSummary{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Title:       p.Title,
		Slug:        p.Slug,
		Excerpt:     p.Excerpt,
		Visibility:  string(vis),
		Tags:        p.TagList(),
		PublishedAt: p.PublishedAt,
		Locked:      !entitlements.CanView(vis, p.AuthorID, viewer),
	}
}

// HandleListPosts lists published posts. Content is never included; premium
// posts a reader cannot open are flagged as locked.
func (pc *PostController) HandleListPosts(c *fiber.Ctx) error {
	viewer := viewerFor(c, pc.entitlements)
	limit := c.QueryInt("limit", 20)
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	q := repository.PostQuery{
		ViewerID: viewer.UserID,
		Tag:      strings.TrimSpace(c.Query("tag")),
		Search:   strings.TrimSpace(c.Query("q")),
		Offset:   (page - 1) * limit,
		Limit:    limit,
	}

	posts, err := pc.posts.ListPublished(q)
	if err != nil {
		log.Errorf("[Posts] listing failed: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
	}
	total, err := pc.posts.CountPublished(q)
	if err != nil {
		log.Errorf("[Posts] count failed: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
	}

	items := make([]postSummary, 0, len(posts))
	for i := range posts {
		vis := entitlements.ParseVisibility(posts[i].Visibility)
		if !entitlements.IsListed(vis, posts[i].AuthorID, viewer) {
			continue
		}
		items = append(items, newPostSummary(&posts[i], viewer))
	}
	return c.JSON(fiber.Map{
		"posts": items,
		"page":  page,
		"total": total,
	})
}

// HandleGetPost returns one post. Private and unpublished posts are hidden
// from everyone but their author.
func (pc *PostController) HandleGetPost(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "slug missing")
	}

	post, err := pc.posts.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "")
		}
		log.Errorf("[Posts] lookup %q failed: %v", slug, err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
	}

	viewer := viewerFor(c, pc.entitlements)
	isAuthor := viewer.UserID != "" && viewer.UserID == post.AuthorID
	published := post.PublishedAt != nil && !post.PublishedAt.After(time.Now())
	vis := entitlements.ParseVisibility(post.Visibility)
	if (!published || vis == entitlements.VisibilityPrivate) && !isAuthor {
		return jsonError(c, fiber.StatusNotFound, "not_found", "")
	}

	summary := newPostSummary(post, viewer)
	if summary.Locked {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "premium_required",
			"post":  summary,
		})
	}
	return c.JSON(postDetail{postSummary: summary, Content: post.Content})
}

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugSplitter = regexp.MustCompile(`[^a-z0-9]+`)
)

type createPostRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Slug        string     `json:"slug" validate:"omitempty,max=191,slug"`
	Excerpt     string     `json:"excerpt" validate:"max=2000"`
	Content     string     `json:"content"`
	Visibility  string     `json:"visibility" validate:"omitempty,oneof=public premium private"`
	Tags        []string   `json:"tags" validate:"max=20,dive,required,max=40,excludesall=0x2C"`
	PublishedAt *time.Time `json:"published_at"`
}

// updatePostRequest only touches the fields present in the body.
type updatePostRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Slug        *string    `json:"slug" validate:"omitempty,max=191,slug"`
	Excerpt     *string    `json:"excerpt" validate:"omitempty,max=2000"`
	Content     *string    `json:"content"`
	Visibility  *string    `json:"visibility" validate:"omitempty,oneof=public premium private"`
	Tags        *[]string  `json:"tags" validate:"omitempty,max=20,dive,required,max=40,excludesall=0x2C"`
	PublishedAt *time.Time `json:"published_at"`
	// Unpublish clears published_at and turns the post back into a draft.
	Unpublish bool `json:"unpublish"`
}

func slugify(title string) string {
	s := slugSplitter.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > 191 {
		s = strings.TrimRight(s[:191], "-")
	}
	return s
}

func joinTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}

// authorView renders a post for its author: content is always included.
func authorView(p *models.Post) postDetail {
	return postDetail{
		postSummary: newPostSummary(p, entitlements.Viewer{UserID: p.AuthorID}),
		Content:     p.Content,
	}
}

// slugAvailable reports whether slug can be used by the post with ownID.
func (pc *PostController) slugAvailable(slug, ownID string) (bool, error) {
	existing, err := pc.posts.GetBySlug(slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ID == ownID, nil
}

// HandleCreatePost stores a new post authored by the caller. A post without
// published_at is a draft.
func (pc *PostController) HandleCreatePost(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := pc.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Title)
	}
	if slug == "" {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", "title yields an empty slug")
	}
	free, err := pc.slugAvailable(slug, "")
	if err != nil {
		log.Errorf("[Posts] slug check %q failed: %v", slug, err)
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
	}
	if !free {
		return jsonError(c, fiber.StatusConflict, "slug_taken", slug)
	}

	if req.Visibility == "" {
		req.Visibility = string(entitlements.VisibilityPublic)
	}
	post := &models.Post{
		AuthorID:    userCtx.UserID,
		Title:       req.Title,
		Slug:        slug,
		Excerpt:     req.Excerpt,
		Content:     req.Content,
		Visibility:  req.Visibility,
		Tags:        joinTags(req.Tags),
		PublishedAt: utcTime(req.PublishedAt),
	}
	if err := pc.posts.Create(post); err != nil {
		return pc.writeError(c, "create", slug, err)
	}
	log.Infof("[Posts] %s created %q", userCtx.UserID, slug)
	return c.Status(fiber.StatusCreated).JSON(authorView(post))
}

// HandleUpdatePost applies a partial update to one of the caller's posts.
func (pc *PostController) HandleUpdatePost(c *fiber.Ctx) error {
	post, err := pc.ownPost(c)
	if post == nil {
		return err
	}

	var req updatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if err := pc.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if req.Unpublish && req.PublishedAt != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", "published_at and unpublish are exclusive")
	}

	if req.Slug != nil && *req.Slug != post.Slug {
		free, err := pc.slugAvailable(*req.Slug, post.ID)
		if err != nil {
			log.Errorf("[Posts] slug check %q failed: %v", *req.Slug, err)
			return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
		}
		if !free {
			return jsonError(c, fiber.StatusConflict, "slug_taken", *req.Slug)
		}
		post.Slug = *req.Slug
	}
	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Excerpt != nil {
		post.Excerpt = *req.Excerpt
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.Visibility != nil {
		post.Visibility = *req.Visibility
	}
	if req.Tags != nil {
		post.Tags = joinTags(*req.Tags)
	}
	switch {
	case req.Unpublish:
		post.PublishedAt = nil
	case req.PublishedAt != nil:
		post.PublishedAt = utcTime(req.PublishedAt)
	}

	if err := pc.posts.Update(post); err != nil {
		return pc.writeError(c, "update", post.Slug, err)
	}
	return c.JSON(authorView(post))
}

// HandleDeletePost soft deletes one of the caller's posts.
func (pc *PostController) HandleDeletePost(c *fiber.Ctx) error {
	post, err := pc.ownPost(c)
	if post == nil {
		return err
	}
	if err := pc.posts.Delete(post.ID); err != nil {
		return pc.writeError(c, "delete", post.Slug, err)
	}
	log.Infof("[Posts] %s deleted %q", post.AuthorID, post.Slug)
	return c.SendStatus(fiber.StatusNoContent)
}

// ownPost loads the post named by the slug param for its author. When it
// returns nil the response has already been written.
func (pc *PostController) ownPost(c *fiber.Ctx) (*models.Post, error) {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return nil, jsonError(c, fiber.StatusBadRequest, "bad_request", "slug missing")
	}
	post, err := pc.posts.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "")
		}
		log.Errorf("[Posts] lookup %q failed: %v", slug, err)
		return nil, jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
	}
	caller := usercontext.GetUserContext(c).UserID
	if caller == "" || caller != post.AuthorID {
		// Drafts and private posts stay invisible to everyone else.
		published := post.PublishedAt != nil && !post.PublishedAt.After(time.Now())
		if !published || entitlements.ParseVisibility(post.Visibility) == entitlements.VisibilityPrivate {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "")
		}
		return nil, jsonError(c, fiber.StatusForbidden, "not_author", "")
	}
	return post, nil
}

func (pc *PostController) writeError(c *fiber.Ctx, op, slug string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return jsonError(c, fiber.StatusConflict, "slug_taken", slug)
	}
	log.Errorf("[Posts] %s %q failed: %v", op, slug, err)
	return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "")
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
