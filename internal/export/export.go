package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"medbook/internal/domain"
	"medbook/internal/models"
)

// MaxExportDays bounds the date range of a single export.
const MaxExportDays = 92

var header = []string{"Date", "Start", "End", "Slot", "Order", "Status", "Client", "Title"}

// ScheduleExporter renders a professional's slots and the orders holding
// them into an XLSX workbook, one row per slot.
type ScheduleExporter struct {
	availability domain.AvailabilityService
	orders       domain.OrderService
	dir          string
	logger       *zerolog.Logger
}

func NewScheduleExporter(availability domain.AvailabilityService, orders domain.OrderService, dir string, logger *zerolog.Logger) *ScheduleExporter {
	if dir == "" {
		dir = "./exports"
	}
	return &ScheduleExporter{availability: availability, orders: orders, dir: dir, logger: logger}
}

// Build generates slots for every day in [from, to] and lays them out on a
// sheet named after the professional. The caller closes the file.
func (e *ScheduleExporter) Build(ctx context.Context, professional *models.Professional, from, to time.Time) (*excelize.File, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	if to.Before(from) {
		return nil, domain.Invalid("to", "must not be before from")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxExportDays {
		return nil, domain.Invalid("to", fmt.Sprintf("range exceeds %d days", MaxExportDays))
	}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if _, err := e.availability.GenerateSlots(ctx, professional.ID, day); err != nil {
			return nil, err
		}
	}
	slots, err := e.availability.GetSlotsForRange(ctx, professional.ID, from, to)
	if err != nil {
		return nil, err
	}
	orders, err := e.orders.ListOrdersByProfessional(ctx, professional.ID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := sheetName(professional)
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	if err := writeRows(f, sheet, slots, holders(orders)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook to w.
func (e *ScheduleExporter) Write(ctx context.Context, w io.Writer, professional *models.Professional, from, to time.Time) error {
	f, err := e.Build(ctx, professional, from, to)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveFile writes the workbook into the export directory and returns its path.
func (e *ScheduleExporter) SaveFile(ctx context.Context, professional *models.Professional, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Build(ctx, professional, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(e.dir, FileName(professional.ID, from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", path).Str("professional_id", professional.ID.String()).Msg("Schedule exported")
	return path, nil
}

func FileName(professionalID uuid.UUID, from, to time.Time) string {
	return fmt.Sprintf("schedule_%s_%s_to_%s.xlsx",
		professionalID.String()[:8],
		models.DateOf(from).Format(models.DateLayout),
		models.DateOf(to).Format(models.DateLayout))
}

// holders maps each reserved slot to the order that holds it.
func holders(orders []*models.Order) map[uuid.UUID]*models.Order {
	out := make(map[uuid.UUID]*models.Order)
	for _, o := range orders {
		for _, id := range o.SlotIDs {
			out[id] = o
		}
	}
	return out
}

func writeRows(f *excelize.File, sheet string, slots []*models.Slot, holders map[uuid.UUID]*models.Order) error {
	for col, title := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("error writing header: %w", err)
		}
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	reservedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	for i, slot := range slots {
		row := i + 2
		values := []interface{}{
			slot.Date.Format(models.DateLayout),
			slot.StartTime.String(),
			slot.EndTime.String(),
			string(slot.State),
		}
		if o, ok := holders[slot.ID]; ok {
			values = append(values, o.ID.String(), string(o.Status), o.ClientID.String(), o.Title)
		}

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if slot.State == models.SlotReserved {
			_ = f.SetCellStyle(sheet, start, fmt.Sprintf("%s%d", lastCol, row), reservedStyle)
		}
	}

	_ = f.SetColWidth(sheet, "A", "D", 12)
	_ = f.SetColWidth(sheet, "E", "G", 38)
	_ = f.SetColWidth(sheet, "H", "H", 30)
	return nil
}

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

// sheetName fits the display name into Excel's sheet name rules.
func sheetName(p *models.Professional) string {
	name := []rune(strings.TrimSpace(sheetNameReplacer.Replace(p.DisplayName)))
	if len(name) == 0 {
		return "Schedule"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return string(name)
}
