package label

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidLabel, s)
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Render produces the label in the requested format.
func (g *Generator) Render(p Payload, f Format) ([]byte, error) {
	if f == FormatPDF {
		return g.PDF(p)
	}
	return g.PNG(p)
}

// PDF lays the QR code out on a printable A4 sheet with the return details
// written beside it for the carrier counter.
func (g *Generator) PDF(p Payload) ([]byte, error) {
	qr, err := g.PNG(p)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(qr))
	if err != nil {
		return nil, fmt.Errorf("failed to decode QR code: %w", err)
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFontData("goregular", goregular.TTF); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("goregular", "", 18); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	pdf.SetXY(40, 40)
	if err := pdf.Cell(nil, "RETURN SHIPPING LABEL"); err != nil {
		return nil, err
	}

	if err := pdf.SetFont("goregular", "", 12); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetXY(40, 80)
	for _, line := range []struct{ label, value string }{
		{"Order", p.OrderID},
		{"Return", p.ReturnID},
		{"Tracking", p.TrackingNumber},
		{"Ship to seller", p.ShipTo},
		{"Postage paid by", string(p.PaidBy)},
		{"Issued", p.IssuedAt.Format("2006-01-02 15:04 MST")},
	} {
		pdf.SetX(40)
		if err := pdf.Cell(nil, line.label+": "+line.value); err != nil {
			return nil, err
		}
		pdf.Br(20)
	}

	if err := pdf.ImageFrom(img, 40, pdf.GetY()+20, &gopdf.Rect{W: 200, H: 200}); err != nil {
		return nil, fmt.Errorf("failed to draw QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
