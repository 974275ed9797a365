package export

import (
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/storage"
)

func fixtureStore(t *testing.T) *storage.MemStore {
	t.Helper()
	s := storage.NewMemStore()
	s.AddObject("uuid:title", storage.Relations{
		Model:   mapper.NdkMonographTitle,
		Members: []string{"uuid:vol"},
	})
	s.AddDatastream("uuid:title", storage.DsMods, "text/xml",
		[]byte(`<mods><titleInfo><title>Kosmas</title></titleInfo><identifier type="isbn">0306406152</identifier></mods>`))
	s.AddObject("uuid:vol", storage.Relations{
		Model:     mapper.NdkMonographVolume,
		ParentPID: "uuid:title",
		Members:   []string{"uuid:p1", "uuid:p2"},
	})
	s.AddDatastream("uuid:vol", storage.DsMods, "text/xml",
		[]byte(`<mods><titleInfo><title>Kosmas</title></titleInfo><part><detail type="volume"><number>1</number></detail></part></mods>`))
	for _, pid := range []string{"uuid:p1", "uuid:p2"} {
		s.AddObject(pid, storage.Relations{Model: mapper.NdkPage, ParentPID: "uuid:vol"})
	}
	s.AddDatastream("uuid:p1", storage.DsMods, "text/xml",
		[]byte(`<mods><part><detail type="pageNumber"><number>1</number></detail></part></mods>`))
	s.AddDatastream("uuid:p2", storage.DsMods, "text/xml",
		[]byte(`<mods><part><detail type="pageNumber"><number>2</number></detail></part></mods>`))
	// only the first page carries an original scan
	s.AddDatastream("uuid:p1", storage.DsContent, "image/jp2", []byte("jp2-bytes"))
	return s
}

func readInfo(t *testing.T, path string) *Info {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	info := &Info{}
	require.NoError(t, xml.Unmarshal(data, info))
	return info
}

func TestExportStandardPackage(t *testing.T) {
	dir := t.TempDir()
	ex := New(fixtureStore(t), mapper.NewRegistry())

	results, err := ex.Export(context.Background(), Options{
		TargetDir: dir,
		PackageID: "sip001",
	}, []string{"uuid:title"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, StatusOK, res.Status, "errors: %+v", res.Errors)
	assert.Equal(t, filepath.Join(dir, "sip001"), res.OutputFolder)
	assert.False(t, res.EndedAt.Before(res.StartedAt))

	metadata, err := os.ReadDir(filepath.Join(dir, "sip001", "metadata"))
	require.NoError(t, err)
	var names []string
	for _, f := range metadata {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{
		"mods_title_0001.xml",
		"mods_volume_0002.xml",
		"mods_page_0003.xml",
		"mods_page_0004.xml",
	}, names, "one descriptor per tree node, role from the model")

	original, err := os.ReadDir(filepath.Join(dir, "sip001", "original"))
	require.NoError(t, err)
	require.Len(t, original, 1, "content only for leaves whose primary datastream exists")
	assert.Equal(t, "oc_sip001_0003.jp2", original[0].Name())

	info := readInfo(t, filepath.Join(dir, "sip001", "info_sip001.xml"))
	assert.Equal(t, "sip001", info.PackageID)
	assert.Equal(t, MetadataVersion, info.MetadataVersion)
	assert.Equal(t, "9780306406157", info.TitleID)
	assert.Equal(t, []string{"uuid:title", "uuid:vol", "uuid:p1", "uuid:p2"}, info.ItemList.Items,
		"manifest item order follows the declared relation order")
	assert.Equal(t, 4, info.ItemList.ItemTotal)
	assert.Empty(t, validateInfo(info))
}

func TestExportLoadingFailureDiscardsFolder(t *testing.T) {
	dir := t.TempDir()
	ex := New(storage.NewMemStore(), mapper.NewRegistry())

	results, err := ex.Export(context.Background(), Options{
		TargetDir: dir,
		PackageID: "sip002",
	}, []string{"uuid:missing"})
	require.NoError(t, err, "a missing root fails its own result, not the batch")
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)

	_, statErr := os.Stat(filepath.Join(dir, "sip002"))
	assert.True(t, os.IsNotExist(statErr), "no partial package is left on disk")
}

func TestExportSiblingRootsContinue(t *testing.T) {
	dir := t.TempDir()
	ex := New(fixtureStore(t), mapper.NewRegistry())

	results, err := ex.Export(context.Background(), Options{TargetDir: dir},
		[]string{"uuid:missing", "uuid:vol"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusOK, results[1].Status, "errors: %+v", results[1].Errors)
}

func TestExportStateTransitions(t *testing.T) {
	dir := t.TempDir()
	ex := New(fixtureStore(t), mapper.NewRegistry())

	var states []State
	_, err := ex.Export(context.Background(), Options{
		TargetDir: dir,
		OnState:   func(pid string, s State) { states = append(states, s) },
	}, []string{"uuid:vol"})
	require.NoError(t, err)
	assert.Equal(t, []State{StatePending, StateLoading, StateLoaded, StateExporting, StateDone}, states)
}

func TestExportValidationCollected(t *testing.T) {
	dir := t.TempDir()
	s := storage.NewMemStore()
	// a volume without any title fails required-field validation
	s.AddObject("uuid:bare", storage.Relations{Model: mapper.NdkMonographVolume})

	ex := New(s, mapper.NewRegistry())
	results, err := ex.Export(context.Background(), Options{TargetDir: dir}, []string{"uuid:bare"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, StatusWarning, res.Status)
	require.NotEmpty(t, res.Errors)
	assert.True(t, res.Errors[0].Warning)
	assert.Contains(t, res.Errors[0].ValidationErrors, "title is missing")
}

// flakyContentStore fails original-content reads for one pid; metadata reads
// keep working so the tree still builds.
type flakyContentStore struct {
	storage.Store
	pid string
}

func (s *flakyContentStore) Find(ctx context.Context, pid string) (storage.Object, error) {
	obj, err := s.Store.Find(ctx, pid)
	if err != nil {
		return nil, err
	}
	if pid == s.pid {
		return &flakyContentObject{Object: obj}, nil
	}
	return obj, nil
}

type flakyContentObject struct {
	storage.Object
}

func (o *flakyContentObject) Datastream(id storage.DatastreamID) ([]byte, time.Time, error) {
	if id == storage.DsContent {
		return nil, time.Time{}, errors.New("read timeout")
	}
	return o.Object.Datastream(id)
}

func TestExportFailedObjectLeavesNoOrdinalGap(t *testing.T) {
	dir := t.TempDir()
	ex := New(&flakyContentStore{Store: fixtureStore(t), pid: "uuid:p1"}, mapper.NewRegistry())

	results, err := ex.Export(context.Background(), Options{
		TargetDir: dir,
		PackageID: "sip003",
	}, []string{"uuid:vol"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, StatusFailed, res.Status)

	info := readInfo(t, filepath.Join(dir, "sip003", "info_sip003.xml"))
	assert.Equal(t, []string{"uuid:vol", "uuid:p2"}, info.ItemList.Items)
	assert.Equal(t, 2, info.ItemList.ItemTotal)

	metadata, err := os.ReadDir(filepath.Join(dir, "sip003", "metadata"))
	require.NoError(t, err)
	var names []string
	for _, f := range metadata {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{"mods_volume_0001.xml", "mods_page_0002.xml"}, names,
		"descriptor ordinals follow the manifest positions")
}

func TestOldPrintProfileSelectsSubset(t *testing.T) {
	s := fixtureStore(t)
	s.AddObject("uuid:op", storage.Relations{Model: mapper.OldPrintPage, ParentPID: "uuid:vol"})

	dir := t.TempDir()
	ex := New(s, mapper.NewRegistry())

	// graft the old-print page into the volume
	obj, err := s.Find(context.Background(), "uuid:vol")
	require.NoError(t, err)
	rel, modified, err := obj.Relations()
	require.NoError(t, err)
	rel.Members = append(rel.Members, "uuid:op")
	_, err = obj.WriteRelations(rel, modified)
	require.NoError(t, err)

	results, err := ex.Export(context.Background(), Options{
		TargetDir: dir,
		Profile:   OldPrintProfile{},
		PackageID: "op001",
	}, []string{"uuid:vol"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	info := readInfo(t, filepath.Join(dir, "op001", "info_op001.xml"))
	assert.Equal(t, []string{"uuid:vol", "uuid:op"}, info.ItemList.Items,
		"old-print profile keeps the root and the old-print subset only")
}

func TestProfileByName(t *testing.T) {
	p, ok := ProfileByName("")
	require.True(t, ok)
	assert.Equal(t, "ndk", p.Name())
	p, ok = ProfileByName("oldprint")
	require.True(t, ok)
	assert.Equal(t, "oldprint", p.Name())
	_, ok = ProfileByName("bogus")
	assert.False(t, ok)
}
