package store

import (
	"encoding/json"
	"fmt"

	"factory-erp/internal/core"
)

// decodeRecord turns a stored jsonb document back into the typed record for its table.
func decodeRecord(table core.Table, raw []byte) (any, error) {
	switch table {
	case core.TableCustomers:
		return decodeAs[core.Customer](raw)
	case core.TableProducts:
		return decodeAs[core.Product](raw)
	case core.TableOrders:
		return decodeAs[core.Order](raw)
	case core.TableOrderItems:
		return decodeAs[core.OrderItem](raw)
	case core.TableProductionOrders:
		return decodeAs[core.ProductionOrder](raw)
	case core.TablePayments:
		return decodeAs[core.Payment](raw)
	case core.TableUsers:
		return decodeAs[core.User](raw)
	case core.TableSuggestions:
		return decodeAs[core.ProductionSuggestion](raw)
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

func decodeAs[T any](raw []byte) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// storedRow is one record as persisted: the document plus the out-of-band password hash.
type storedRow struct {
	Table        core.Table
	ID           string
	Data         []byte
	PasswordHash *string
}

func encodeRecord(table core.Table, id string, rec any) (storedRow, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return storedRow{}, fmt.Errorf("failed to encode %s %s: %w", table, id, err)
	}
	row := storedRow{Table: table, ID: id, Data: data}
	if u, ok := rec.(core.User); ok && u.PasswordHash != "" {
		row.PasswordHash = &u.PasswordHash
	}
	return row, nil
}

// snapshotRows flattens the record tables of s into rows.
func snapshotRows(s *core.Snapshot) ([]storedRow, error) {
	var rows []storedRow
	add := func(t core.Table, id string, rec any) error {
		r, err := encodeRecord(t, id, rec)
		if err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	}
	for _, v := range s.Customers {
		if err := add(core.TableCustomers, v.ID, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Products {
		if err := add(core.TableProducts, v.ID, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Orders {
		if err := add(core.TableOrders, v.ID, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.OrderItems {
		if err := add(core.TableOrderItems, v.ID, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.ProductionOrders {
		if err := add(core.TableProductionOrders, v.ID, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Payments {
		if err := add(core.TablePayments, v.ID, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Users {
		if err := add(core.TableUsers, v.ID, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Suggestions {
		if err := add(core.TableSuggestions, v.ID, v); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// appendRecord places a decoded record into the matching snapshot list.
func appendRecord(s *core.Snapshot, rec any) {
	switch v := rec.(type) {
	case core.Customer:
		s.Customers = append(s.Customers, v)
	case core.Product:
		s.Products = append(s.Products, v)
	case core.Order:
		s.Orders = append(s.Orders, v)
	case core.OrderItem:
		s.OrderItems = append(s.OrderItems, v)
	case core.ProductionOrder:
		s.ProductionOrders = append(s.ProductionOrders, v)
	case core.Payment:
		s.Payments = append(s.Payments, v)
	case core.User:
		s.Users = append(s.Users, v)
	case core.ProductionSuggestion:
		s.Suggestions = append(s.Suggestions, v)
	}
}
