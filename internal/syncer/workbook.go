package syncer

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// DecodeWorkbook reads an xlsx export and returns one list per synced table.
// A table whose sheet is missing is left nil so the caller keeps its local copy.
// Sheet names match case-insensitively. Rows without an id are ignored. A cell
// that cannot be read is logged and left at its zero value; the rest of the
// row and the workbook still load.
func DecodeWorkbook(r io.Reader, log logger.Logger) (*core.Snapshot, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := make(map[string]string)
	for _, name := range f.GetSheetList() {
		sheets[strings.ToLower(strings.TrimSpace(name))] = name
	}

	s := &core.Snapshot{}
	var decodeErr error
	load := func(t core.Table, assign func(rows [][]string, bad badCellFunc)) {
		if decodeErr != nil {
			return
		}
		name, ok := sheets[strings.ToLower(string(t))]
		if !ok {
			return
		}
		rows, err := f.GetRows(name)
		if err != nil {
			decodeErr = fmt.Errorf("failed to read sheet %s: %w", name, err)
			return
		}
		assign(rows, func(row int, column string, err error) {
			log.Warn("skipping unreadable cell",
				logger.String("sheet", name),
				logger.Int("row", row),
				logger.String("column", column),
				logger.Error(err),
			)
		})
	}

	load(core.TableCustomers, func(rows [][]string, bad badCellFunc) {
		s.Customers = decodeSheet[core.Customer](rows, bad)
	})
	load(core.TableProducts, func(rows [][]string, bad badCellFunc) {
		s.Products = decodeSheet[core.Product](rows, bad)
	})
	load(core.TableOrders, func(rows [][]string, bad badCellFunc) {
		s.Orders = decodeSheet[core.Order](rows, bad)
	})
	load(core.TableOrderItems, func(rows [][]string, bad badCellFunc) {
		s.OrderItems = decodeSheet[core.OrderItem](rows, bad)
	})
	load(core.TableProductionOrders, func(rows [][]string, bad badCellFunc) {
		s.ProductionOrders = decodeSheet[core.ProductionOrder](rows, bad)
	})
	load(core.TablePayments, func(rows [][]string, bad badCellFunc) {
		s.Payments = decodeSheet[core.Payment](rows, bad)
	})
	load(core.TableUsers, func(rows [][]string, bad badCellFunc) {
		s.Users = decodeSheet[core.User](rows, bad)
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return s, nil
}

// badCellFunc is told about every cell decodeSheet had to skip. Row numbers are 1-based sheet rows.
type badCellFunc func(row int, column string, err error)

// decodeSheet maps a header row plus data rows onto T by json field name.
// The result is non-nil even when the sheet has no data rows.
func decodeSheet[T any](rows [][]string, bad badCellFunc) []T {
	out := make([]T, 0)
	if len(rows) == 0 {
		return out
	}
	header := rows[0]
	fields := jsonFields(reflect.TypeOf((*T)(nil)).Elem())

	for n, row := range rows[1:] {
		var v T
		rv := reflect.ValueOf(&v).Elem()
		hasID := false
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			idx, ok := fields[strings.ToLower(strings.TrimSpace(header[i]))]
			if !ok {
				continue
			}
			field := rv.FieldByIndex(idx)
			if err := setCell(field, cell); err != nil {
				field.SetZero()
				bad(n+2, header[i], err)
				continue
			}
			if strings.EqualFold(header[i], "id") {
				hasID = true
			}
		}
		if hasID {
			out = append(out, v)
		}
	}
	return out
}

func jsonFields(t reflect.Type) map[string][]int {
	fields := make(map[string][]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[strings.ToLower(name)] = f.Index
	}
	return fields
}

func setCell(field reflect.Value, cell string) error {
	if field.Kind() == reflect.Pointer {
		ptr := reflect.New(field.Type().Elem())
		if err := setCell(ptr.Elem(), cell); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}

	switch field.Type() {
	case timeType:
		t, err := parseCellTime(cell)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	case decimalType:
		d, err := decimal.NewFromString(strings.ReplaceAll(cell, ",", "."))
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(cell)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, err := parseCellInt(cell)
		if err != nil {
			return err
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("%d out of range", n)
		}
		field.SetInt(n)
	case reflect.Bool:
		field.SetBool(parseCellBool(cell))
	case reflect.Slice, reflect.Struct, reflect.Map:
		if err := json.Unmarshal([]byte(cell), field.Addr().Interface()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

func parseCellTime(cell string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, nil
		}
	}
	// Unformatted date cells come through as spreadsheet serial numbers.
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", cell)
}

// parseCellInt accepts whole numbers, including the "6.0" form numeric cells
// sometimes export as.
func parseCellInt(cell string) (int64, error) {
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %q", cell)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%q out of range", cell)
	}
	return int64(f), nil
}

func parseCellBool(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "1", "yes", "sim", "verdadeiro":
		return true
	}
	return false
}
