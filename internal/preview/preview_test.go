package preview

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joinhub/console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newPreviewer(t *testing.T, limit int) *Previewer {
	t.Helper()
	p, err := New(limit)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func stage(t *testing.T, name, content string) models.UploadedFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return models.UploadedFile{Name: name, Path: path, Size: int64(len(content))}
}

func TestPreview_CSV(t *testing.T) {
	p := newPreviewer(t, 2)

	got, err := p.Preview(context.Background(), stage(t, "Sales.CSV", "id,name\n1,kim\n2,lee\n3,park\n"))
	require.NoError(t, err)
	assert.Equal(t, KindTable, got.Kind)
	assert.Equal(t, []string{"id", "name"}, got.Table.Columns)
	assert.Equal(t, [][]string{{"1", "kim"}, {"2", "lee"}}, got.Table.Rows)
	assert.True(t, got.Table.Truncated)
}

func TestPreview_TSV(t *testing.T) {
	p := newPreviewer(t, 0)

	got, err := p.Preview(context.Background(), stage(t, "people.tsv", "id\temail\n1\ta@example.com\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, got.Table.Columns)
	assert.Equal(t, [][]string{{"1", "a@example.com"}}, got.Table.Rows)
	assert.False(t, got.Table.Truncated)
}

func TestPreview_JSON(t *testing.T) {
	p := newPreviewer(t, 0)

	got, err := p.Preview(context.Background(), stage(t, "rows.json", `[{"id":1,"city":"Seoul"},{"id":2,"city":null}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "city"}, got.Table.Columns)
	require.Len(t, got.Table.Rows, 2)
	assert.Equal(t, "Seoul", got.Table.Rows[0][1])
	assert.Equal(t, "", got.Table.Rows[1][1])
}

func TestPreview_PathWithQuote(t *testing.T) {
	p := newPreviewer(t, 0)

	got, err := p.Preview(context.Background(), stage(t, "o'brien.csv", "id\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, got.Table.Columns)
}

func TestPreview_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"id", "amount"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{1, 100}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{2, 250}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	p := newPreviewer(t, 1)
	got, err := p.Preview(context.Background(), models.UploadedFile{Name: "book.xlsx", Path: path})
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", got.Table.Sheet)
	assert.Equal(t, []string{"id", "amount"}, got.Table.Columns)
	assert.Equal(t, [][]string{{"1", "100"}}, got.Table.Rows)
	assert.True(t, got.Table.Truncated)
}

func TestPreview_TextAndUnsupported(t *testing.T) {
	p := newPreviewer(t, 0)

	got, err := p.Preview(context.Background(), stage(t, "notes.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, KindText, got.Kind)
	assert.Equal(t, "hello", got.Text)

	got, err = p.Preview(context.Background(), stage(t, "legacy.xls", "binary"))
	require.NoError(t, err)
	assert.Equal(t, KindUnsupported, got.Kind)
	assert.NotEmpty(t, got.Message)
}

func TestPreview_BrokenFile(t *testing.T) {
	p := newPreviewer(t, 0)

	_, err := p.Preview(context.Background(), stage(t, "broken.xlsx", "not a zip"))
	assert.Error(t, err)
}
