package cmd

import (
	"context"
	"fmt"
	"io"

	"wpmu/internal/output"
	"wpmu/internal/publish"
	"wpmu/internal/report"
)

// publisher sends every rendered report to the destinations that were asked for.
type publisher struct {
	store  *publish.ObjectStore
	bucket string
	sheet  *publish.Sheet
}

func newPublisher(ctx context.Context, opts *reportOptions) (*publisher, error) {
	p := &publisher{bucket: opts.MinioBucket}

	if opts.Upload {
		store, err := publish.NewObjectStore(ctx, publish.ObjectConfig{
			Endpoint:  opts.MinioEndpoint,
			AccessKey: opts.MinioAccessKey,
			SecretKey: opts.MinioSecretKey,
			Bucket:    opts.MinioBucket,
			Prefix:    opts.MinioPrefix,
			UseSSL:    opts.MinioSSL,
		})
		if err != nil {
			return nil, err
		}
		p.store = store
	}

	if opts.SheetID != "" {
		srv, err := publish.NewSheetsService(ctx, opts.SheetCredentials)
		if err != nil {
			return nil, err
		}
		p.sheet = publish.NewSheet(publish.NewSheetAPI(srv), opts.SheetID)
	}
	return p, nil
}

func (p *publisher) publish(ctx context.Context, status io.Writer, rep *report.Report, format output.Format, data []byte) error {
	if p.store != nil {
		key, err := p.store.Upload(ctx, rep.Kind, format, data)
		if err != nil {
			return err
		}
		fmt.Fprintf(status, "Uploaded %s report to %s/%s\n", rep.Kind, p.bucket, key)
	}
	if p.sheet != nil {
		if err := p.sheet.Export(ctx, "", rep); err != nil {
			return err
		}
		fmt.Fprintf(status, "Exported %s report to Google Sheets\n", rep.Kind)
	}
	return nil
}
