package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/config"
)

// sharedRoot seeds the mock with the shared root folder and its metadata.
func sharedRoot(mock *backend.Mock) {
	mock.Folders = append(mock.Folders, backend.Folder{ID: sharedRootID, Name: "Shared", ContentMetadataID: "meta-shared"})
	mock.Metas["meta-shared"] = &backend.ContentMeta{ID: "meta-shared", Inherits: false}
}

func TestFolderCreateBreaksInheritanceFirst(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	mock.Groups = []backend.Group{{ID: "g-1", Name: "Finance"}}

	desired := []config.Folder{{
		Name:   "Finance Reports",
		Parent: "Shared",
		Access: []config.AccessRule{{Group: "Finance", Permission: "edit"}},
	}}

	rec := &FolderReconciler{Client: mock}
	changes, err := rec.Plan(testCtx(), desired)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].CreateFolder)

	summary := rec.Apply(testCtx(), changes)
	assert.Equal(t, 1, summary.Succeeded)

	// inheritance must be severed before any entry is granted
	assert.Less(t, mock.CallIndex("CreateFolder Finance Reports"), mock.CallIndex("SetInheritance"))
	assert.Less(t, mock.CallIndex("SetInheritance"), mock.CallIndex("AddAccessEntry"))
	assert.True(t, mock.AssertCalled("AddAccessEntry"))
}

func TestFolderInheritingFirstPassIsBreakThenAdd(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	mock.Folders = append(mock.Folders, backend.Folder{ID: "f-1", Name: "Finance Reports", ParentID: sharedRootID, ContentMetadataID: "meta-1"})
	mock.Metas["meta-1"] = &backend.ContentMeta{ID: "meta-1", Inherits: true}
	mock.Groups = []backend.Group{{ID: "g-1", Name: "Finance"}}

	desired := []config.Folder{{
		Name:   "Finance Reports",
		Parent: "Shared",
		Access: []config.AccessRule{{Group: "Finance", Permission: "edit"}},
	}}

	rec := &FolderReconciler{Client: mock}
	changes, err := rec.Plan(testCtx(), desired)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].BreakInheritance)
	assert.True(t, changes[0].Resync)

	summary := rec.Apply(testCtx(), changes)
	assert.Equal(t, 1, summary.Succeeded)
	assert.False(t, mock.Metas["meta-1"].Inherits)
	assert.True(t, mock.AssertCalled("AddAccessEntry meta-1 g-1 edit"))
}

func TestFolderBreakMaterializesParentEntriesThenDiffs(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	// Parent carries an entry that the child will inherit on break and
	// that the desired config does not want.
	mock.Access["meta-shared"] = []backend.AccessEntry{{ID: "a-1", GroupID: "g-all", Permission: "view"}}
	mock.Folders = append(mock.Folders, backend.Folder{ID: "f-1", Name: "Finance Reports", ParentID: sharedRootID, ContentMetadataID: "meta-1"})
	mock.Metas["meta-1"] = &backend.ContentMeta{ID: "meta-1", Inherits: true}
	mock.Groups = []backend.Group{{ID: "g-1", Name: "Finance"}, {ID: "g-all", Name: "Everyone"}}

	desired := []config.Folder{{
		Name:   "Finance Reports",
		Parent: "Shared",
		Access: []config.AccessRule{{Group: "Finance", Permission: "edit"}},
	}}

	rec := &FolderReconciler{Client: mock}
	changes, err := rec.Plan(testCtx(), desired)
	require.NoError(t, err)
	summary := rec.Apply(testCtx(), changes)
	assert.Equal(t, 1, summary.Succeeded)

	// the inherited copy of the parent's entry must be removed
	require.Len(t, mock.Access["meta-1"], 1)
	assert.Equal(t, "g-1", mock.Access["meta-1"][0].GroupID)
	assert.Equal(t, "edit", mock.Access["meta-1"][0].Permission)
}

func TestFolderEntryUpdateAndRemove(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	mock.Folders = append(mock.Folders, backend.Folder{ID: "f-1", Name: "Finance Reports", ParentID: sharedRootID, ContentMetadataID: "meta-1"})
	mock.Metas["meta-1"] = &backend.ContentMeta{ID: "meta-1", Inherits: false}
	mock.Access["meta-1"] = []backend.AccessEntry{
		{ID: "a-1", GroupID: "g-1", Permission: "view"},
		{ID: "a-2", UserID: "u-1", Permission: "edit"},
	}
	mock.Groups = []backend.Group{{ID: "g-1", Name: "Finance"}}

	desired := []config.Folder{{
		Name:   "Finance Reports",
		Parent: "Shared",
		Access: []config.AccessRule{{Group: "Finance", Permission: "edit"}},
	}}

	rec := &FolderReconciler{Client: mock}
	changes, err := rec.Plan(testCtx(), desired)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Len(t, changes[0].Ops, 2)

	rec.Apply(testCtx(), changes)
	require.Len(t, mock.Access["meta-1"], 1)
	assert.Equal(t, "edit", mock.Access["meta-1"][0].Permission)
	assert.Equal(t, "g-1", mock.Access["meta-1"][0].GroupID)
}

func TestFolderIdempotence(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	mock.Groups = []backend.Group{{ID: "g-1", Name: "Finance"}}

	desired := []config.Folder{{
		Name:   "Finance Reports",
		Parent: "Shared",
		Access: []config.AccessRule{{Group: "Finance", Permission: "edit"}},
	}}

	rec := &FolderReconciler{Client: mock}
	changes, err := rec.Plan(testCtx(), desired)
	require.NoError(t, err)
	rec.Apply(testCtx(), changes)

	again, err := (&FolderReconciler{Client: mock}).Plan(testCtx(), desired)
	require.NoError(t, err)
	assert.Empty(t, again, "a second pass over applied state must plan nothing")
}

func TestFolderOIDCSuffixFallback(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	mock.Folders = append(mock.Folders, backend.Folder{ID: "f-1", Name: "Finance Reports", ParentID: sharedRootID, ContentMetadataID: "meta-1"})
	mock.Metas["meta-1"] = &backend.ContentMeta{ID: "meta-1", Inherits: false}
	mock.Groups = []backend.Group{{ID: "g-1", Name: "Finance (OIDC)"}}

	desired := []config.Folder{{
		Name:   "Finance Reports",
		Parent: "Shared",
		Access: []config.AccessRule{{Group: "Finance"}},
	}}

	rec := &FolderReconciler{Client: mock}
	changes, err := rec.Plan(testCtx(), desired)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Len(t, changes[0].Ops, 1)
	assert.Equal(t, "g-1", changes[0].Ops[0].Principal.ID)
	assert.Equal(t, "view", changes[0].Ops[0].To, "permission defaults to view")
}

func TestFolderInheritingWithNoDesiredEntriesLeftAlone(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	mock.Folders = append(mock.Folders, backend.Folder{ID: "f-1", Name: "Finance Reports", ParentID: sharedRootID, ContentMetadataID: "meta-1"})
	mock.Metas["meta-1"] = &backend.ContentMeta{ID: "meta-1", Inherits: true}

	desired := []config.Folder{{Name: "Finance Reports", Parent: "Shared"}}

	changes, err := (&FolderReconciler{Client: mock}).Plan(testCtx(), desired)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.True(t, mock.Metas["meta-1"].Inherits)
}

func TestFolderSharedRootAccessManagedDirectly(t *testing.T) {
	mock := backend.NewMock()
	sharedRoot(mock)
	mock.Groups = []backend.Group{{ID: "g-1", Name: "Everyone"}}

	desired := []config.Folder{{
		Name:   "Shared",
		Access: []config.AccessRule{{Group: "Everyone", Permission: "view"}},
	}}

	rec := &FolderReconciler{Client: mock}
	changes, err := rec.Plan(testCtx(), desired)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.False(t, changes[0].CreateFolder, "the shared root is never created")

	rec.Apply(testCtx(), changes)
	require.Len(t, mock.Access["meta-shared"], 1)
	assert.Equal(t, "g-1", mock.Access["meta-shared"][0].GroupID)
}
