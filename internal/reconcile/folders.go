package reconcile

import (
	"fmt"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
	"github.com/melih-ucgun/warden/internal/core"
)

// Built-in folder ids. The shared root and the embed root are addressable by
// well-known ids, not by search.
const (
	sharedRootID = "1"
	embedRootID  = "cm_embed:1"
)

// principalKey identifies one access-list principal.
type principalKey struct {
	Type string // "group" or "user"
	ID   string
}

// accessState is the live half of the access map: permission plus the entry
// id needed for update and remove calls.
type accessState struct {
	Permission string
	EntryID    string
}

// FolderReconciler reconciles hierarchical folder access lists, including
// the inheritance break that materializes parent entries onto a folder.
type FolderReconciler struct {
	Client backend.Client

	groups map[string]string // group name -> id, fetched lazily once per run
}

// folderChange is one planned folder mutation. CreateFolder and the
// inheritance-carrying variants defer the entry-level diff to apply time,
// because the entries to diff against only exist after the create/break.
type folderChange struct {
	Name     string
	FolderID string
	MetaID   string
	ParentID string

	CreateFolder     bool
	BreakInheritance bool
	Resync           bool // re-diff entries after the break materializes them
	Ops              []accessOp
	Access           []config.AccessRule
}

// accessOp is a single precomputed entry mutation. The three op kinds have
// no ordering dependency on each other.
type accessOp struct {
	Op        string // "add", "update", "remove"
	Principal principalKey
	EntryID   string
	From      string
	To        string
}

func (c *folderChange) item() core.DiffItem {
	item := core.DiffItem{Kind: core.KindFolder, Name: c.Name, ID: c.FolderID, Action: core.ActionUpdate}
	if c.CreateFolder {
		item.Action = core.ActionCreate
		item.Payload = map[string]any{"name": c.Name, "parent_id": c.ParentID}
	}
	if c.BreakInheritance || c.CreateFolder {
		item.Changes = append(item.Changes, core.FieldChange{Field: "inherits", Old: "true", New: "false"})
		for _, rule := range c.Access {
			principal := rule.Group
			if principal == "" {
				principal = rule.User
			}
			item.Changes = append(item.Changes, core.FieldChange{
				Field: "access[" + principal + "]",
				New:   permissionOrDefault(rule.Permission),
			})
		}
		return item
	}
	for _, op := range c.Ops {
		item.Changes = append(item.Changes, core.FieldChange{
			Field: fmt.Sprintf("access[%s:%s]", op.Principal.Type, op.Principal.ID),
			Old:   op.From,
			New:   op.To,
		})
	}
	return item
}

func permissionOrDefault(p string) string {
	if p == "" {
		return "view"
	}
	return p
}

// Plan computes the folder changes for the desired config.
func (r *FolderReconciler) Plan(ctx *core.RunContext, desired []config.Folder) ([]folderChange, error) {
	var changes []folderChange
	for _, folder := range desired {
		if folder.Name == "" {
			continue
		}

		// The shared root always exists; go straight to its access list.
		if folder.Name == "Shared" {
			change, err := r.planExisting(ctx, sharedRootID, folder)
			if err != nil {
				return nil, err
			}
			if change != nil {
				changes = append(changes, *change)
			}
			continue
		}

		parentID, err := r.resolveParent(ctx, folder.Parent)
		if err != nil {
			ctx.Logger.Error(fmt.Sprintf("Parent '%s' not found for folder '%s', skipping", folder.Parent, folder.Name))
			continue
		}

		children, err := r.Client.FolderChildren(ctx, parentID)
		if err != nil {
			return nil, &core.FetchError{Kind: core.KindFolder, Err: err}
		}

		var existing *backend.Folder
		for i, child := range children {
			if child.Name == folder.Name {
				existing = &children[i]
				break
			}
		}

		if existing == nil {
			changes = append(changes, folderChange{
				Name:         folder.Name,
				ParentID:     parentID,
				CreateFolder: true,
				Access:       folder.Access,
			})
			continue
		}

		change, err := r.planExisting(ctx, existing.ID, folder)
		if err != nil {
			return nil, err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

// planExisting diffs the access list of a folder that already exists.
func (r *FolderReconciler) planExisting(ctx *core.RunContext, folderID string, desired config.Folder) (*folderChange, error) {
	folder, err := r.Client.GetFolder(ctx, folderID)
	if err != nil {
		return nil, &core.FetchError{Kind: core.KindFolder, Err: err}
	}
	if folder.ContentMetadataID == "" {
		return nil, nil
	}

	meta, err := r.Client.GetContentMeta(ctx, folder.ContentMetadataID)
	if err != nil {
		return nil, &core.FetchError{Kind: core.KindFolder, Err: err}
	}

	if meta.Inherits {
		// Empty desired entries on an inheriting folder means: keep
		// inheriting. Non-empty means: break first, then the entry diff
		// runs against whatever the break materialized.
		if len(desired.Access) == 0 {
			return nil, nil
		}
		return &folderChange{
			Name:             desired.Name,
			FolderID:         folder.ID,
			MetaID:           folder.ContentMetadataID,
			BreakInheritance: true,
			Resync:           true,
			Access:           desired.Access,
		}, nil
	}

	ops, err := r.diffEntries(ctx, folder.ContentMetadataID, desired)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, nil
	}
	return &folderChange{
		Name:     desired.Name,
		FolderID: folder.ID,
		MetaID:   folder.ContentMetadataID,
		Ops:      ops,
		Access:   desired.Access,
	}, nil
}

// diffEntries computes the three-way entry diff between live and desired.
func (r *FolderReconciler) diffEntries(ctx *core.RunContext, metaID string, desired config.Folder) ([]accessOp, error) {
	current, err := r.currentMap(ctx, metaID)
	if err != nil {
		return nil, err
	}
	target := r.targetMap(ctx, desired)

	var ops []accessOp
	for key, perm := range target {
		state, exists := current[key]
		if !exists {
			ops = append(ops, accessOp{Op: "add", Principal: key, To: perm})
			continue
		}
		if state.Permission != perm {
			ops = append(ops, accessOp{
				Op: "update", Principal: key, EntryID: state.EntryID,
				From: state.Permission, To: perm,
			})
		}
	}
	for key, state := range current {
		if _, wanted := target[key]; !wanted {
			ops = append(ops, accessOp{
				Op: "remove", Principal: key, EntryID: state.EntryID, From: state.Permission,
			})
		}
	}
	return ops, nil
}

func (r *FolderReconciler) currentMap(ctx *core.RunContext, metaID string) (map[principalKey]accessState, error) {
	entries, err := r.Client.ListAccessEntries(ctx, metaID)
	if err != nil {
		return nil, &core.FetchError{Kind: core.KindFolder, Err: err}
	}

	current := make(map[principalKey]accessState, len(entries))
	for _, entry := range entries {
		key := principalKey{Type: "user", ID: entry.UserID}
		if entry.GroupID != "" {
			key = principalKey{Type: "group", ID: entry.GroupID}
		}
		current[key] = accessState{Permission: entry.Permission, EntryID: entry.ID}
	}
	return current, nil
}

// targetMap resolves desired principals to backend ids. An unresolvable
// principal is logged and dropped: validation already had its chance to
// reject it, so by this point the safe interpretation is "no intent".
func (r *FolderReconciler) targetMap(ctx *core.RunContext, desired config.Folder) map[principalKey]string {
	target := make(map[principalKey]string, len(desired.Access))
	for _, rule := range desired.Access {
		perm := permissionOrDefault(rule.Permission)

		switch {
		case rule.Group != "":
			if id := r.groupID(ctx, rule.Group); id != "" {
				target[principalKey{Type: "group", ID: id}] = perm
				continue
			}
		case rule.User != "":
			if id, err := r.Client.FindUserID(ctx, rule.User); err == nil && id != "" {
				target[principalKey{Type: "user", ID: id}] = perm
				continue
			}
		}

		principal := rule.Group
		if principal == "" {
			principal = rule.User
		}
		ctx.Logger.Warn(fmt.Sprintf("Principal '%s' not found for folder '%s', skipping entry", principal, desired.Name))
	}
	return target
}

// groupID resolves a group name, trying the bare name first and then the
// identity-provider suffix variant.
func (r *FolderReconciler) groupID(ctx *core.RunContext, name string) string {
	if r.groups == nil {
		groups, err := r.Client.ListGroups(ctx)
		if err != nil {
			ctx.Logger.Warn(fmt.Sprintf("Failed to fetch groups: %v", err))
			groups = nil
		}
		r.groups = make(map[string]string, len(groups))
		for _, g := range groups {
			r.groups[g.Name] = g.ID
		}
	}

	if id, ok := r.groups[name]; ok {
		return id
	}
	return r.groups[name+" (OIDC)"]
}

func (r *FolderReconciler) resolveParent(ctx *core.RunContext, parent string) (string, error) {
	switch parent {
	case "", "Shared":
		return sharedRootID, nil
	case "Embed":
		return embedRootID, nil
	}

	folders, err := r.Client.SearchFolders(ctx, parent)
	if err != nil {
		return "", err
	}
	if len(folders) == 0 {
		return "", fmt.Errorf("folder %q not found", parent)
	}
	return folders[0].ID, nil
}

// Apply executes the planned folder changes. A new folder's first mutation
// after creation is the explicit inheritance break; new folders inherit by
// default and would otherwise keep their parent's access.
func (r *FolderReconciler) Apply(ctx *core.RunContext, changes []folderChange) core.Summary {
	summary := core.Summary{Kind: core.KindFolder}

	for _, change := range changes {
		if change.CreateFolder {
			ctx.Logger.Info(fmt.Sprintf("Creating folder '%s'", change.Name))
			folder, err := r.Client.CreateFolder(ctx, change.Name, change.ParentID)
			if err != nil {
				r.fail(ctx, &summary, change.Name, err)
				continue
			}
			if err := r.Client.SetInheritance(ctx, folder.ContentMetadataID, false); err != nil {
				r.fail(ctx, &summary, change.Name, err)
				continue
			}
			if err := r.syncEntries(ctx, folder.ContentMetadataID, change); err != nil {
				r.fail(ctx, &summary, change.Name, err)
				continue
			}
			summary.Record(core.SuccessChange(change.Name))
			continue
		}

		if change.BreakInheritance {
			ctx.Logger.Info(fmt.Sprintf("Breaking access inheritance for folder '%s'", change.Name))
			if err := r.Client.SetInheritance(ctx, change.MetaID, false); err != nil {
				r.fail(ctx, &summary, change.Name, err)
				continue
			}
		}

		ops := change.Ops
		if change.Resync {
			// The break just materialized the parent's entries; diff
			// against those, not against the pre-break snapshot.
			fresh, err := r.diffEntries(ctx, change.MetaID, config.Folder{Name: change.Name, Access: change.Access})
			if err != nil {
				r.fail(ctx, &summary, change.Name, err)
				continue
			}
			ops = fresh
		}

		if err := r.applyOps(ctx, change.MetaID, ops); err != nil {
			r.fail(ctx, &summary, change.Name, err)
			continue
		}
		summary.Record(core.SuccessChange(change.Name))
	}
	return summary
}

// syncEntries re-diffs and applies entries from the live state. Used right
// after folder creation, when the plan could not know the entry ids.
func (r *FolderReconciler) syncEntries(ctx *core.RunContext, metaID string, change folderChange) error {
	ops, err := r.diffEntries(ctx, metaID, config.Folder{Name: change.Name, Access: change.Access})
	if err != nil {
		return err
	}
	return r.applyOps(ctx, metaID, ops)
}

func (r *FolderReconciler) applyOps(ctx *core.RunContext, metaID string, ops []accessOp) error {
	for _, op := range ops {
		var err error
		switch op.Op {
		case "add":
			entry := backend.AccessEntry{Permission: op.To}
			if op.Principal.Type == "group" {
				entry.GroupID = op.Principal.ID
			} else {
				entry.UserID = op.Principal.ID
			}
			ctx.Logger.Info(fmt.Sprintf("  + %s %s (%s)", op.Principal.Type, op.Principal.ID, op.To))
			err = r.Client.AddAccessEntry(ctx, metaID, entry)
		case "update":
			ctx.Logger.Info(fmt.Sprintf("  ~ %s %s (%s -> %s)", op.Principal.Type, op.Principal.ID, op.From, op.To))
			err = r.Client.UpdateAccessEntry(ctx, op.EntryID, op.To)
		case "remove":
			ctx.Logger.Info(fmt.Sprintf("  - %s %s", op.Principal.Type, op.Principal.ID))
			err = r.Client.RemoveAccessEntry(ctx, op.EntryID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *FolderReconciler) fail(ctx *core.RunContext, summary *core.Summary, name string, err error) {
	applyErr := &core.ApplyError{
		Item: core.DiffItem{Kind: core.KindFolder, Name: name},
		Err:  err,
	}
	ctx.Logger.Error(applyErr.Error())
	summary.Record(core.Failure(applyErr, name))
}
