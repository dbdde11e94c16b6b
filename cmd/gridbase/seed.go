package main

import (
	"context"

	"github.com/gridbase/gridbase/pkg/engine"
	"github.com/gridbase/gridbase/pkg/models"
)

type seedTable struct {
	name    string
	columns []seedColumn
	rows    [][]string
}

type seedColumn struct {
	name     string
	dataType models.DataType
}

var seedTables = []seedTable{
	{
		name: "Customers",
		columns: []seedColumn{
			{"Name", models.DataTypeText},
			{"Email", models.DataTypeText},
			{"Age", models.DataTypeNumber},
		},
		rows: [][]string{
			{"John Doe", "john@example.com", "30"},
			{"Jane Smith", "jane@example.com", "25"},
			{"Bob Johnson", "bob@example.com", "35"},
		},
	},
	{
		name: "Orders",
		columns: []seedColumn{
			{"OrderID", models.DataTypeText},
			{"CustomerID", models.DataTypeText},
			{"OrderDate", models.DataTypeDate},
			{"TotalAmount", models.DataTypeNumber},
		},
		rows: [][]string{
			{"ORD001", "1", "2024-01-15", "150.00"},
			{"ORD002", "2", "2024-01-16", "89.99"},
			{"ORD003", "1", "2024-01-17", "220.50"},
		},
	},
}

// Seed loads the sample dataset: a Customers table, an Orders table, and one
// lookup reference from the first order's CustomerID cell to the customer's
// Name cell.
func Seed(ctx context.Context, eng *engine.Engine) error {
	var customerIDCell, customerNameCell *models.CellValue

	for _, st := range seedTables {
		table, err := eng.CreateTable(ctx, 1, st.name)
		if err != nil {
			return err
		}

		cols := make([]*models.Column, 0, len(st.columns))
		for _, sc := range st.columns {
			col, err := eng.AddColumn(ctx, table.ID, sc.name, sc.dataType, nil)
			if err != nil {
				return err
			}
			cols = append(cols, col)
		}

		for ri, values := range st.rows {
			row, err := eng.AddRow(ctx, table.ID)
			if err != nil {
				return err
			}
			for ci, value := range values {
				v := value
				cell, err := eng.SetCell(ctx, row.ID, cols[ci].ID, &v)
				if err != nil {
					return err
				}
				if st.name == "Customers" && ri == 0 && cols[ci].Name == "Name" {
					customerNameCell = cell
				}
				if st.name == "Orders" && ri == 0 && cols[ci].Name == "CustomerID" {
					customerIDCell = cell
				}
			}
		}
	}

	if customerIDCell != nil && customerNameCell != nil {
		if _, err := eng.AddReference(ctx, customerIDCell.ID, customerNameCell.ID, "lookup"); err != nil {
			return err
		}
	}
	return nil
}
