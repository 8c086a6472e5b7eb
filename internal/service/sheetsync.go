package service

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"license-activation-service/internal/model"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSyncService mirrors license rows into a Google Sheet for operators
// who track issued licenses in a spreadsheet. A nil service is a no-op, so
// callers never need to check whether sync is enabled.
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *logrus.Logger
}

func NewSheetSyncService(enabled bool, credentialPath, spreadsheetID, sheetName string, log *logrus.Logger) (*SheetSyncService, error) {
	if !enabled {
		return nil, nil
	}

	ctx := context.Background()

	b, err := os.ReadFile(credentialPath)
	if err != nil {
		return nil, fmt.Errorf("read sheet credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("load sheet credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		log:           log,
	}, nil
}

func (s *SheetSyncService) row(lic *model.License) []interface{} {
	return []interface{}{
		lic.Key,
		lic.Status,
		lic.ClientName,
		lic.ClientEmail,
		lic.LicenseType,
		strconv.Itoa(lic.DurationDays),
		strconv.FormatInt(lic.CreatedAt, 10),
		strconv.FormatInt(lic.ActivatedAt, 10),
		strconv.FormatInt(lic.ExpiresAt, 10),
	}
}

// SyncLicense writes one license row, updating in place when the key is
// already present in the sheet.
func (s *SheetSyncService) SyncLicense(lic *model.License) error {
	if s == nil {
		return nil
	}

	keyRange := fmt.Sprintf("%s!A2:A", s.sheetName)
	keyResp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, keyRange).Do()
	if err != nil {
		s.log.WithError(err).Warn("sheet key lookup failed")
		return fmt.Errorf("sheet key lookup: %w", err)
	}

	rowIndex := 0
	for i, row := range keyResp.Values {
		if len(row) > 0 && row[0] == lic.Key {
			rowIndex = i + 2 // data starts at A2
			break
		}
	}

	values := &sheets.ValueRange{Values: [][]interface{}{s.row(lic)}}

	if rowIndex > 0 {
		updateRange := fmt.Sprintf("%s!A%d:I%d", s.sheetName, rowIndex, rowIndex)
		_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updateRange, values).
			ValueInputOption("USER_ENTERED").Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A2:I", values).
			ValueInputOption("USER_ENTERED").Do()
	}
	if err != nil {
		s.log.WithError(err).WithField("key", lic.Key).Warn("sheet sync failed")
		return fmt.Errorf("sheet sync: %w", err)
	}
	return nil
}

// SyncAll appends every given license in one call. Used for initial
// backfill of an empty sheet.
func (s *SheetSyncService) SyncAll(licenses []model.License) error {
	if s == nil || len(licenses) == 0 {
		return nil
	}

	var rows [][]interface{}
	for i := range licenses {
		rows = append(rows, s.row(&licenses[i]))
	}

	_, err := s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		s.sheetName+"!A2:I",
		&sheets.ValueRange{Values: rows},
	).ValueInputOption("USER_ENTERED").Do()
	if err != nil {
		s.log.WithError(err).Warn("sheet backfill failed")
		return err
	}
	return nil
}
