// Package curator reconciles a fetched [child, parent?] hierarchy with the
// resources already in the store.
package curator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/locdb/locdb/internal/metrics"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

// Curator writes hierarchies into a store without duplicating resources
// that are already there.
type Curator struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Curator.
type Option func(*Curator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Curator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records curation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Curator) {
		c.metrics = m
	}
}

// New creates a Curator on store.
func New(store storage.Store, opts ...Option) *Curator {
	c := &Curator{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result describes what a curation did to each member.
type Result struct {
	Hierarchy     resource.Hierarchy
	ParentCreated bool
	ParentMerged  bool
	ChildCreated  bool
	ChildMerged   bool

	// Orphan is set when the child was stored without a parent although
	// its type normally has one.
	Orphan bool
}

// outcome of persisting one member
type outcome int

const (
	unchanged outcome = iota
	created
	merged
)

func (o outcome) String() string {
	switch o {
	case created:
		return "created"
	case merged:
		return "merged"
	case unchanged:
		return "unchanged"
	}
	return "unknown"
}

// Curate persists h and returns it with the stored ids filled in.
func (c *Curator) Curate(ctx context.Context, h resource.Hierarchy) (resource.Hierarchy, error) {
	res, err := c.CurateResult(ctx, h)
	if err != nil {
		return resource.Hierarchy{}, err
	}
	return res.Hierarchy, nil
}

// CurateResult persists h and reports whether each member was created,
// merged into an existing record, or left unchanged.
//
// Each member is matched against the store by identifier first and by
// exact title second; the child match is restricted to children of the
// resolved parent. A matched record absorbs the fields it lacks and keeps
// the ones it has. The parent is written before the child so the child
// never points at a missing parent. When the store is a
// storage.Transactor the whole sequence runs in one transaction.
func (c *Curator) CurateResult(ctx context.Context, h resource.Hierarchy) (Result, error) {
	if err := validate(h); err != nil {
		return Result{}, err
	}
	h = resource.CloneHierarchy(h)

	var res Result
	var err error
	if tx, ok := c.store.(storage.Transactor); ok {
		err = tx.WithTx(ctx, func(s storage.Store) error {
			res, err = c.curate(ctx, s, h, true)
			return err
		})
	} else {
		res, err = c.curate(ctx, c.store, h, false)
	}
	if err != nil {
		c.metrics.ObserveCuration("hierarchy", "failed")
		c.logger.Error("curation failed",
			slog.String("title", h.Child.Title),
			slog.Any("error", err))
		return Result{}, err
	}

	if res.Orphan {
		c.logger.Info("stored child without parent",
			slog.String("id", res.Hierarchy.Child.ID),
			slog.String("type", string(res.Hierarchy.Child.Type)))
	}
	return res, nil
}

func (c *Curator) curate(ctx context.Context, s storage.Store, h resource.Hierarchy, atomic bool) (Result, error) {
	var res Result
	scope := storage.Scope{}

	if h.Parent != nil {
		parent, o, err := c.persist(ctx, s, *h.Parent, storage.Scope{}, "parent")
		if err != nil {
			return res, err
		}
		res.ParentCreated = o == created
		res.ParentMerged = o == merged
		c.metrics.ObserveCuration("parent", o.String())

		h.Parent = &parent
		h.Child.PartOf = parent.ID
		scope = storage.Within(parent.ID)
		res.Hierarchy.Parent = h.Parent
	}

	child, o, err := c.persist(ctx, s, h.Child, scope, "child")
	if err != nil {
		if h.Parent != nil && !atomic && (res.ParentCreated || res.ParentMerged) {
			return res, &ChildWriteError{ParentID: h.Parent.ID, Err: err}
		}
		return res, err
	}
	res.ChildCreated = o == created
	res.ChildMerged = o == merged
	c.metrics.ObserveCuration("child", o.String())

	res.Hierarchy.Child = child
	res.Hierarchy.Source = h.Source
	res.Orphan = h.Parent == nil && child.PartOf == "" && child.Type.ParentType() != ""
	return res, nil
}

// Attach curates parent and links the stored orphan childID to it. A child
// that already has a parent is returned unchanged.
func (c *Curator) Attach(ctx context.Context, childID string, parent resource.Resource) (resource.Hierarchy, error) {
	if err := parent.Validate(); err != nil {
		return resource.Hierarchy{}, err
	}
	parent = resource.Clone(parent)

	var h resource.Hierarchy
	attach := func(s storage.Store) error {
		child, err := s.Get(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			return fmt.Errorf("child %s: %w", childID, storage.ErrNotFound)
		}
		h.Child = *child
		if child.PartOf != "" {
			return nil
		}
		if !child.Type.CanHaveParent() {
			return &resource.ValidationError{Field: "child.type", Reason: "a journal cannot be attached to a parent"}
		}

		stored, o, err := c.persist(ctx, s, parent, storage.Scope{}, "parent")
		if err != nil {
			return err
		}
		c.metrics.ObserveCuration("parent", o.String())

		h.Child.PartOf = stored.ID
		if err := s.Update(ctx, childID, h.Child); err != nil {
			return fmt.Errorf("linking child %s: %w", childID, err)
		}
		c.metrics.ObserveCuration("child", merged.String())
		h.Parent = &stored
		return nil
	}

	var err error
	if tx, ok := c.store.(storage.Transactor); ok {
		err = tx.WithTx(ctx, attach)
	} else {
		err = attach(c.store)
	}
	if err != nil {
		c.metrics.ObserveCuration("hierarchy", "failed")
		return resource.Hierarchy{}, err
	}
	if h.Parent != nil {
		c.logger.Info("attached orphan to parent",
			slog.String("id", childID),
			slog.String("parent", h.Parent.ID))
	}
	return h, nil
}

// persist matches candidate against the store and inserts or merges it.
func (c *Curator) persist(ctx context.Context, s storage.Store, candidate resource.Resource, scope storage.Scope, role string) (resource.Resource, outcome, error) {
	stored, err := resolve(ctx, s, candidate, scope, role)
	if err != nil {
		return resource.Resource{}, unchanged, err
	}

	if stored == nil {
		candidate.ID = ""
		candidate.Source = ""
		if candidate.Status == "" || candidate.Status == resource.StatusExternal {
			candidate.Status = resource.StatusValid
		}
		id, err := s.Insert(ctx, candidate)
		if err != nil {
			return resource.Resource{}, unchanged, fmt.Errorf("inserting %s: %w", role, err)
		}
		candidate.ID = id
		c.logger.Debug("inserted resource", slog.String("role", role), slog.String("id", id))
		return candidate, created, nil
	}

	candidate.Source = ""
	m := resource.Merge(*stored, candidate)
	changed := resource.Diff(*stored, m)
	if len(changed) == 0 {
		return *stored, unchanged, nil
	}
	if err := s.Update(ctx, stored.ID, m); err != nil {
		return resource.Resource{}, unchanged, fmt.Errorf("updating %s %s: %w", role, stored.ID, err)
	}
	c.logger.Debug("merged resource",
		slog.String("role", role),
		slog.String("id", stored.ID),
		slog.Any("fields", changed))
	return m, merged, nil
}

// resolve finds the stored resource candidate refers to, or nil. A match
// on any identifier wins over a title match. Within a parent scope, an
// identifier match that has no parent yet is adopted when no child of the
// parent matches, so a stored orphan is linked instead of duplicated.
func resolve(ctx context.Context, s storage.Store, candidate resource.Resource, scope storage.Scope, role string) (*resource.Resource, error) {
	var ids, orphanIDs []string
	byID := make(map[string]resource.Resource)
	for _, ident := range candidate.Identifiers {
		found, err := s.FindByIdentifier(ctx, ident.Scheme, ident.LiteralValue)
		if err != nil {
			return nil, err
		}
		for _, r := range found {
			if _, seen := byID[r.ID]; seen {
				continue
			}
			switch {
			case !scope.Set || r.PartOf == scope.PartOf:
				ids = append(ids, r.ID)
			case r.PartOf == "" && r.ID != scope.PartOf && r.Type.CanHaveParent():
				orphanIDs = append(orphanIDs, r.ID)
			default:
				continue
			}
			byID[r.ID] = r
		}
	}
	if len(ids) == 0 {
		ids = orphanIDs
	}
	switch len(ids) {
	case 0:
	case 1:
		r := byID[ids[0]]
		return &r, nil
	default:
		return nil, &AmbiguousMatchError{Role: role, Candidates: ids}
	}

	if candidate.Title == "" {
		return nil, nil
	}
	found, err := s.FindByTitle(ctx, candidate.Title, scope)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	default:
		ids := make([]string, len(found))
		for i, r := range found {
			ids[i] = r.ID
		}
		return nil, &AmbiguousMatchError{Role: role, Candidates: ids}
	}
}

func validate(h resource.Hierarchy) error {
	if h.Child.Type == resource.TypeJournal {
		return &resource.ValidationError{Field: "child.type", Reason: "a journal cannot be curated as a child"}
	}
	if err := h.Child.Validate(); err != nil {
		return err
	}
	if h.Parent != nil {
		if err := h.Parent.Validate(); err != nil {
			return err
		}
	}
	return nil
}
