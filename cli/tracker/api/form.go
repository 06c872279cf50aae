package api

import (
	"fmt"
	"strconv"
)

// Формы приходят с фронта в свободной форме; перед сохранением приводим их
// к фиксированному набору полей путевого листа.

type FormMeta struct {
	OID    string `json:"oid"`
	DtFrom string `json:"dt_from"`
	DtTo   string `json:"dt_to"`
}

type FormRow struct {
	Route      string `json:"route"`
	TripNo     string `json:"tripNo"`
	Km         string `json:"km"`
	Tons       string `json:"tons"`
	Width      string `json:"width"`
	Length     string `json:"length"`
	PssTonnage string `json:"pssTonnage"`
	Delivery   string `json:"delivery"`
}

type FormTotals struct {
	KmSpread string `json:"km_spread"`
	TonsSum  string `json:"tons_sum"`
	KmGps    string `json:"km_gps"`
	Delivery string `json:"delivery"`
	Idle     string `json:"idle"`
}

type FormPayload struct {
	Meta   FormMeta   `json:"meta"`
	Rows   []FormRow  `json:"rows"`
	Totals FormTotals `json:"totals"`
}

// sanitizePayload отбрасывает неизвестные ключи и приводит значения к
// строкам: фронт присылает числа и строки вперемешку.
func sanitizePayload(raw map[string]interface{}) FormPayload {
	meta, _ := raw["meta"].(map[string]interface{})
	totals, _ := raw["totals"].(map[string]interface{})
	rows, _ := raw["rows"].([]interface{})

	out := FormPayload{
		Meta: FormMeta{
			OID:    asString(meta["oid"]),
			DtFrom: asString(meta["dt_from"]),
			DtTo:   asString(meta["dt_to"]),
		},
		Rows: []FormRow{},
		Totals: FormTotals{
			KmSpread: asString(totals["km_spread"]),
			TonsSum:  asString(totals["tons_sum"]),
			KmGps:    asString(totals["km_gps"]),
			Delivery: asString(totals["delivery"]),
			Idle:     asString(totals["idle"]),
		},
	}

	for _, r := range rows {
		row, _ := r.(map[string]interface{})
		out.Rows = append(out.Rows, FormRow{
			Route:      asString(row["route"]),
			TripNo:     asString(row["tripNo"]),
			Km:         asString(row["km"]),
			Tons:       asString(row["tons"]),
			Width:      asString(row["width"]),
			Length:     asString(row["length"]),
			PssTonnage: asString(row["pssTonnage"]),
			Delivery:   asString(row["delivery"]),
		})
	}

	return out
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
