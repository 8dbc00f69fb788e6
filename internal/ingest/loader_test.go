package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
)

type fakeDocRepo struct {
	byHash map[string]*repository.DocumentRow
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{byHash: map[string]*repository.DocumentRow{}}
}

func (f *fakeDocRepo) UpsertByHash(_ context.Context, tenantID, sourcePath, format, hashHex string, uploadedAt time.Time) (*repository.DocumentRow, bool, error) {
	key := tenantID + "/" + hashHex
	if row, ok := f.byHash[key]; ok {
		return row, true, nil
	}
	row := &repository.DocumentRow{
		ID:         uuid.New(),
		TenantID:   tenantID,
		SourcePath: sourcePath,
		Format:     format,
		HashHex:    hashHex,
		Status:     constants.DocumentPending,
		UploadedAt: uploadedAt,
	}
	f.byHash[key] = row
	return row, false, nil
}

func (f *fakeDocRepo) UpdateStatus(context.Context, uuid.UUID, constants.DocumentStatus) error {
	return nil
}

func (f *fakeDocRepo) GetByID(context.Context, uuid.UUID) (*repository.DocumentRow, error) {
	return nil, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPathHydratesCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv", "vendor,amount\nAcme,12.00\n")

	l := NewLoader(newFakeDocRepo(), nil)
	doc, res, err := l.LoadPath(context.Background(), "tenant-1", path)
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, constants.CSV, doc.Format)
	assert.Equal(t, "vendor,amount\nAcme,12.00\n", doc.Text())
	assert.Len(t, doc.HashHex, 64)
	assert.False(t, res.Deduplicated)
}

func TestLoadPathDeduplicatesByContent(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "a.csv", "same content")
	second := writeFile(t, dir, "b.csv", "same content")

	l := NewLoader(newFakeDocRepo(), nil)
	doc1, res1, err := l.LoadPath(context.Background(), "tenant-1", first)
	require.NoError(t, err)
	require.NotNil(t, doc1)

	doc2, res2, err := l.LoadPath(context.Background(), "tenant-1", second)
	require.NoError(t, err)
	assert.Nil(t, doc2)
	assert.True(t, res2.Deduplicated)
	assert.Equal(t, res1.DocumentID, res2.DocumentID)
}

func TestLoadPathRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello")

	l := NewLoader(newFakeDocRepo(), nil)
	_, _, err := l.LoadPath(context.Background(), "tenant-1", path)
	assert.Error(t, err)
}

func TestLoadDirectorySkipsHiddenAndCounts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.csv", "a")
	writeFile(t, dir, "two.csv", "b")
	writeFile(t, dir, ".hidden.csv", "c")
	writeFile(t, dir, "skipped.txt", "d")

	var seen []*entity.RawDocument
	l := NewLoader(newFakeDocRepo(), nil)
	results, stats, err := l.LoadDirectory(context.Background(), "tenant-1", dir, func(d *entity.RawDocument) {
		seen = append(seen, d)
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(2), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(0), stats.Failed)
	assert.Len(t, results, 2)
	assert.Len(t, seen, 2)
}

func TestArchiverSeparatesValidAndInvalid(t *testing.T) {
	inbox := t.TempDir()
	archive := t.TempDir()
	good := writeFile(t, inbox, "good.csv", "x")
	bad := writeFile(t, inbox, "bad.csv", "y")

	a := NewArchiver(archive, nil)
	destGood, err := a.Archive(good, true)
	require.NoError(t, err)
	destBad, err := a.Archive(bad, false)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(archive, "valid", "good.csv"), destGood)
	assert.Equal(t, filepath.Join(archive, "invalid", "bad.csv"), destBad)
	_, err = os.Stat(good)
	assert.True(t, os.IsNotExist(err))
}

func TestArchiverNeverOverwrites(t *testing.T) {
	inbox := t.TempDir()
	archive := t.TempDir()

	first := writeFile(t, inbox, "dup.csv", "v1")
	_, err := NewArchiver(archive, nil).Archive(first, true)
	require.NoError(t, err)

	second := writeFile(t, inbox, "dup.csv", "v2")
	dest, err := NewArchiver(archive, nil).Archive(second, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "valid", "dup.1.csv"), dest)
}

func TestAllowedExt(t *testing.T) {
	assert.True(t, AllowedExt(".pdf"))
	assert.True(t, AllowedExt(".CSV"))
	assert.False(t, AllowedExt(".txt"))
	assert.False(t, AllowedExt(""))
}
