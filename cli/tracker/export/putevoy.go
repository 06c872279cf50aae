package export

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// Totals — итоговые показатели путевого листа.
type Totals struct {
	KmSpread string
	TonsSum  string
	KmGps    string
	Delivery string
	Idle     string
}

// Ячейки итогов в шаблоне «Камаз-маз».
var totalCells = [...]string{"AF17", "AF18", "AF19", "AF20", "AF21"}

// FillPutevoy заполняет итоговые ячейки шаблона путевого листа и сохраняет
// результат во временный файл. Отсутствующий шаблон не ошибка: лист
// создаётся с нуля.
func FillPutevoy(totals Totals, templatePath string) (string, error) {
	var (
		f   *excelize.File
		err error
	)

	if _, statErr := os.Stat(templatePath); statErr == nil {
		if f, err = excelize.OpenFile(templatePath); err != nil {
			return "", fmt.Errorf("не удалось открыть шаблон: %w", err)
		}
	} else {
		f = excelize.NewFile()
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	values := [...]string{totals.KmGps, totals.KmSpread, totals.TonsSum, totals.Delivery, totals.Idle}
	for i, cell := range totalCells {
		if err = f.SetCellValue(sheet, cell, values[i]); err != nil {
			return "", fmt.Errorf("не удалось заполнить ячейку %s: %w", cell, err)
		}
	}

	out, err := os.CreateTemp("", "putevoy-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	out.Close()

	if err = f.SaveAs(out.Name()); err != nil {
		return "", fmt.Errorf("не удалось сохранить документ: %w", err)
	}
	return out.Name(), nil
}
