package state

import (
	"encoding/json"
	"errors"

	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/store"
)

var errNilAction = errors.New("state: nil action")

// Action is one document mutation, applied through Container.Dispatch.
// Actions carrying a Result field have it populated on success, so they are
// dispatched as pointers.
type Action interface {
	apply(c *Container) error
}

func applyCreate[T store.Entity[T]](s *store.Store[T], entity T, result *T) error {
	created, err := s.Create(entity)
	if err != nil {
		return err
	}
	*result = created
	return nil
}

func applyUpdate[T store.Entity[T]](s *store.Store[T], id string, partial json.RawMessage, result *T) error {
	updated, err := s.Patch(id, partial)
	if err != nil {
		return err
	}
	*result = updated
	return nil
}

// CreatePage appends a page. The page may carry a client-chosen id; an
// empty id gets a generated one.
type CreatePage struct {
	Page   site.Page
	Result site.Page
}

func (a *CreatePage) apply(c *Container) error { return applyCreate(c.pages, a.Page, &a.Result) }

// UpdatePage JSON-merges Partial onto the stored page.
type UpdatePage struct {
	ID      string
	Partial json.RawMessage
	Result  site.Page
}

func (a *UpdatePage) apply(c *Container) error {
	return applyUpdate(c.pages, a.ID, a.Partial, &a.Result)
}

// DeletePage removes a page.
type DeletePage struct{ ID string }

func (a *DeletePage) apply(c *Container) error { return c.pages.Delete(a.ID) }

// MovePage reorders a page; out-of-range indexes clamp to the ends.
type MovePage struct {
	ID      string
	ToIndex int
}

func (a *MovePage) apply(c *Container) error { return c.pages.Move(a.ID, a.ToIndex) }

// CreateElement appends an element. Ids are always generated.
type CreateElement struct {
	Element site.Element
	Result  site.Element
}

func (a *CreateElement) apply(c *Container) error {
	return applyCreate(c.elements, a.Element, &a.Result)
}

// UpdateElement JSON-merges Partial onto the stored element.
type UpdateElement struct {
	ID      string
	Partial json.RawMessage
	Result  site.Element
}

func (a *UpdateElement) apply(c *Container) error {
	return applyUpdate(c.elements, a.ID, a.Partial, &a.Result)
}

// DeleteElement removes an element.
type DeleteElement struct{ ID string }

func (a *DeleteElement) apply(c *Container) error { return c.elements.Delete(a.ID) }

// MoveElement reorders an element within the flat collection.
type MoveElement struct {
	ID      string
	ToIndex int
}

func (a *MoveElement) apply(c *Container) error { return c.elements.Move(a.ID, a.ToIndex) }

// CreateAsset appends an asset.
type CreateAsset struct {
	Asset  site.Asset
	Result site.Asset
}

func (a *CreateAsset) apply(c *Container) error { return applyCreate(c.assets, a.Asset, &a.Result) }

// UpdateAsset JSON-merges Partial onto the stored asset.
type UpdateAsset struct {
	ID      string
	Partial json.RawMessage
	Result  site.Asset
}

func (a *UpdateAsset) apply(c *Container) error {
	return applyUpdate(c.assets, a.ID, a.Partial, &a.Result)
}

// DeleteAsset removes an asset.
type DeleteAsset struct{ ID string }

func (a *DeleteAsset) apply(c *Container) error { return c.assets.Delete(a.ID) }

// MoveAsset reorders an asset.
type MoveAsset struct {
	ID      string
	ToIndex int
}

func (a *MoveAsset) apply(c *Container) error { return c.assets.Move(a.ID, a.ToIndex) }

// CreateStyle appends a style rule.
type CreateStyle struct {
	Style  site.StyleRule
	Result site.StyleRule
}

func (a *CreateStyle) apply(c *Container) error { return applyCreate(c.styles, a.Style, &a.Result) }

// UpdateStyle JSON-merges Partial onto the stored style rule.
type UpdateStyle struct {
	ID      string
	Partial json.RawMessage
	Result  site.StyleRule
}

func (a *UpdateStyle) apply(c *Container) error {
	return applyUpdate(c.styles, a.ID, a.Partial, &a.Result)
}

// DeleteStyle removes a style rule.
type DeleteStyle struct{ ID string }

func (a *DeleteStyle) apply(c *Container) error { return c.styles.Delete(a.ID) }

// MoveStyle reorders a style rule; order is cascade order.
type MoveStyle struct {
	ID      string
	ToIndex int
}

func (a *MoveStyle) apply(c *Container) error { return c.styles.Move(a.ID, a.ToIndex) }

// CreateFont appends a font.
type CreateFont struct {
	Font   site.Font
	Result site.Font
}

func (a *CreateFont) apply(c *Container) error { return applyCreate(c.fonts, a.Font, &a.Result) }

// UpdateFont JSON-merges Partial onto the stored font.
type UpdateFont struct {
	ID      string
	Partial json.RawMessage
	Result  site.Font
}

func (a *UpdateFont) apply(c *Container) error {
	return applyUpdate(c.fonts, a.ID, a.Partial, &a.Result)
}

// DeleteFont removes a font.
type DeleteFont struct{ ID string }

func (a *DeleteFont) apply(c *Container) error { return c.fonts.Delete(a.ID) }

// MoveFont reorders a font.
type MoveFont struct {
	ID      string
	ToIndex int
}

func (a *MoveFont) apply(c *Container) error { return c.fonts.Move(a.ID, a.ToIndex) }

// PatchSite JSON-merges Partial onto the site settings singleton.
type PatchSite struct {
	Partial json.RawMessage
	Result  site.Settings
}

func (a *PatchSite) apply(c *Container) error {
	next, err := c.site.Patch(a.Partial)
	if err != nil {
		return err
	}
	a.Result = next
	return nil
}

// PatchUI JSON-merges Partial onto the UI state singleton.
type PatchUI struct {
	Partial json.RawMessage
	Result  site.UIState
}

func (a *PatchUI) apply(c *Container) error {
	next, err := c.ui.Patch(a.Partial)
	if err != nil {
		return err
	}
	a.Result = next
	return nil
}
