package blogservice

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sushihentaime/postboard/internal/common"
)

var (
	ErrAuthorImmutable = errors.New("author cannot be changed")
)

func validateTitle(v *common.Validator, title string) {
	v.Check(title != "", "title", "must be provided")
	v.Check(v.CheckStringLength(title, 0, maxTitleLength), "title", fmt.Sprintf("must not be more than %d characters long", maxTitleLength))
}

func validateContent(v *common.Validator, content string) {
	v.Check(content != "", "content", "must be provided")
	v.Check(v.CheckStringLength(content, minContentLength, len(content)), "content", fmt.Sprintf("must be at least %d characters long", minContentLength))
}

func validateExcerpt(v *common.Validator, excerpt string) {
	v.Check(v.CheckStringLength(excerpt, 0, maxExcerptLength), "excerpt", fmt.Sprintf("must not be more than %d characters long", maxExcerptLength))
}

func validateTags(v *common.Validator, tags []Tag) {
	for _, t := range tags {
		if !common.PermittedValue(t, Tags...) {
			v.AddError("tags", fmt.Sprintf("%q is not a permitted tag", t))
			return
		}
	}
}

func validateStatus(v *common.Validator, status Status) {
	v.Check(common.PermittedValue(status, StatusDraft, StatusPublished), "status", "must be either draft or published")
}

func validateComment(v *common.Validator, text string) {
	v.Check(text != "", "text", "must be provided")
	v.Check(v.CheckStringLength(text, 0, maxCommentLength), "text", fmt.Sprintf("must not be more than %d characters long", maxCommentLength))
}

func validateFilter(v *common.Validator, f Filter) {
	if f.Tag != "" {
		v.Check(common.PermittedValue(f.Tag, Tags...), "tag", "is not a permitted tag")
	}
}

// prepare normalizes b, recomputes the derived fields and validates the result.
func (b *Blog) prepare() error {
	b.Title = strings.TrimSpace(b.Title)
	b.Content = sanitizeMarkdown(b.Content)
	b.Tags = uniqueTags(b.Tags)
	if b.Status == "" {
		b.Status = StatusDraft
	}

	v := common.NewValidator()
	validateTitle(v, b.Title)
	validateContent(v, b.Content)
	validateTags(v, b.Tags)
	validateStatus(v, b.Status)
	if b.ExcerptExplicit {
		validateExcerpt(v, b.Excerpt)
	}
	v.Check(b.CoverImage != "", "coverImage", "must be provided")
	if !v.Valid() {
		return v.ValidationError()
	}

	b.derive()

	return nil
}

// apply writes the patch onto b. The caller is expected to call prepare afterwards.
func (p BlogPatch) apply(b *Blog) error {
	if p.AuthorID != nil && *p.AuthorID != b.AuthorID {
		return ErrAuthorImmutable
	}

	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Content != nil && *p.Content != b.Content {
		b.Content = *p.Content
		// the excerpt follows the new content unless a new one is supplied
		b.ExcerptExplicit = false
	}
	if p.Excerpt != nil {
		b.Excerpt = strings.TrimSpace(*p.Excerpt)
		b.ExcerptExplicit = b.Excerpt != ""
	}
	if p.CoverImage != nil {
		b.CoverImage = *p.CoverImage
	}
	if p.Tags != nil {
		b.Tags = slices.Clone(*p.Tags)
	}
	if p.Status != nil {
		b.Status = *p.Status
	}

	return nil
}

func uniqueTags(tags []Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		t = Tag(strings.ToLower(strings.TrimSpace(string(t))))
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
