// Package reports формирует Excel-отчёты по заявкам арендатора.
package reports

import (
	"fmt"
	"io"
	"log"

	"Courier/internal/constants"
	"Courier/internal/models"
	"Courier/internal/utils"

	"github.com/xuri/excelize/v2"
)

const deliveriesSheet = "Deliveries"

var deliveryHeaders = []string{
	"ID", "Created", "Status", "Customer", "Customer phone", "Guest",
	"Pickup", "Drop-off", "Payment", "Payment status", "Total",
	"Free delivery", "Driver", "Claimed at", "Completed by", "Completed at", "Driver notes",
}

// WriteDeliveries пишет книгу Excel с заявками в w.
func WriteDeliveries(w io.Writer, deliveries []models.DeliveryRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(deliveriesSheet)
	if err != nil {
		return fmt.Errorf("ошибка создания листа: %w", err)
	}
	f.DeleteSheet("Sheet1") // Удаляем стандартный лист / Delete default sheet
	f.SetActiveSheet(index)

	for i, header := range deliveryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(deliveriesSheet, cell, header)
	}

	for i, d := range deliveries {
		row := i + 2
		values := []any{
			d.ID,
			d.CreatedAt.Format("2006-01-02 15:04"),
			constants.StatusDisplayMap[d.Status],
			d.CustomerName,
			utils.FormatPhoneNumber(d.CustomerPhone),
			!d.CustomerID.Valid,
			d.PickupAddress,
			d.DeliveryAddress,
			d.PaymentMethod,
			d.PaymentStatus,
			nil,
			d.UsedFreeDelivery,
			d.ClaimedByDriver.String,
			nil,
			d.CompletedBy.String,
			nil,
			d.DriverNotes.String,
		}
		if d.TotalAmount.Valid {
			values[10] = d.TotalAmount.Float64
		}
		if d.ClaimedAt.Valid {
			values[13] = d.ClaimedAt.Time.Format("2006-01-02 15:04")
		}
		if d.CompletedAt.Valid {
			values[15] = d.CompletedAt.Time.Format("2006-01-02 15:04")
		}

		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(deliveriesSheet, cell, v); err != nil {
				log.Printf("WriteDeliveries: ошибка записи ячейки %s: %v", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("ошибка записи Excel: %w", err)
	}
	return nil
}
