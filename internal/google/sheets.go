package google

import (
	"context"
	"fmt"
	"os"

	"tameer/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const requestsRange = "Requests!A1"

// SheetsMirror mirrors the requests table into a staff spreadsheet.
// Purely additive: the sqlite store stays the source of truth.
type SheetsMirror struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsMirror(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsMirror, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &SheetsMirror{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection reads the header cell to verify access.
func (s *SheetsMirror) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, requestsRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

var sheetHeader = []interface{}{
	"رقم الطلب", "الاسم", "الهاتف", "الولاية", "نوع الخدمة",
	"الأولوية", "الحالة", "تاريخ الإنشاء",
}

// ReplaceRequestsSheet rewrites the whole sheet from the given
// snapshot. Simpler and safer than row-level reconciliation given the
// table sizes involved.
func (s *SheetsMirror) ReplaceRequestsSheet(ctx context.Context, requests []models.ServiceRequest) error {
	values := make([][]interface{}, 0, len(requests)+1)
	values = append(values, sheetHeader)
	for _, req := range requests {
		values = append(values, requestRow(&req))
	}

	clearCall := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, "Requests!A:H", &sheets.ClearValuesRequest{})
	if _, err := clearCall.Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear requests sheet: %w", err)
	}

	body := &sheets.ValueRange{Values: values}
	updateCall := s.service.Spreadsheets.Values.Update(s.spreadsheetID, requestsRange, body).ValueInputOption("RAW")
	if _, err := updateCall.Context(ctx).Do(); err != nil {
		return fmt.Errorf("update requests sheet: %w", err)
	}
	return nil
}

// AppendRequest adds one new row without rewriting the sheet.
func (s *SheetsMirror) AppendRequest(ctx context.Context, req *models.ServiceRequest) error {
	body := &sheets.ValueRange{Values: [][]interface{}{requestRow(req)}}
	call := s.service.Spreadsheets.Values.Append(s.spreadsheetID, requestsRange, body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS")
	if _, err := call.Context(ctx).Do(); err != nil {
		return fmt.Errorf("append request row: %w", err)
	}
	return nil
}

func requestRow(req *models.ServiceRequest) []interface{} {
	return []interface{}{
		req.RequestID,
		req.Name,
		req.Phone,
		req.Location,
		req.ServiceType,
		req.Urgency,
		string(req.Status),
		req.CreatedAt.Format("2006-01-02 15:04"),
	}
}
