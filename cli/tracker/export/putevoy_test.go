package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testTotals = Totals{
	KmSpread: "36.5",
	TonsSum:  "12.3",
	KmGps:    "40.1",
	Delivery: "3.6",
	Idle:     "0.4",
}

func TestFillPutevoyWithoutTemplate(t *testing.T) {
	path, err := FillPutevoy(testTotals, "")
	require.NoError(t, err)
	defer os.Remove(path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	read := func(cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		assert.NoError(t, err)
		return v
	}

	assert.Equal(t, "40.1", read("AF17"))
	assert.Equal(t, "36.5", read("AF18"))
	assert.Equal(t, "12.3", read("AF19"))
	assert.Equal(t, "3.6", read("AF20"))
	assert.Equal(t, "0.4", read("AF21"))
}

func TestFillPutevoyKeepsTemplateContent(t *testing.T) {
	template := filepath.Join(t.TempDir(), "шаблон.xlsx")

	tf := excelize.NewFile()
	sheet := tf.GetSheetName(tf.GetActiveSheetIndex())
	require.NoError(t, tf.SetCellValue(sheet, "A1", "ПУТЕВОЙ ЛИСТ"))
	require.NoError(t, tf.SaveAs(template))
	tf.Close()

	path, err := FillPutevoy(testTotals, template)
	require.NoError(t, err)
	defer os.Remove(path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheet = f.GetSheetName(f.GetActiveSheetIndex())
	head, err := f.GetCellValue(sheet, "A1")
	assert.NoError(t, err)
	assert.Equal(t, "ПУТЕВОЙ ЛИСТ", head)

	total, err := f.GetCellValue(sheet, "AF19")
	assert.NoError(t, err)
	assert.Equal(t, "12.3", total)
}
