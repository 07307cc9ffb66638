package delivery

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

const qrSizePx = 300

// QRPayload is what the gate scanner reads off a ticket
func QRPayload(reference string, line TicketLine) string {
	return fmt.Sprintf("%s:%s", reference, line.TicketID)
}

// GenerateQRCodePNG encodes text as a PNG QR code with medium error correction
func GenerateQRCodePNG(text string, size int) ([]byte, error) {
	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR to PNG: %w", err)
	}
	return png, nil
}

// RenderTicketsPDF renders one A4 page per ticket with its QR code
func RenderTicketsPDF(req *Request) ([]byte, error) {
	if len(req.Tickets) == 0 {
		return nil, fmt.Errorf("order %s has no tickets to render", req.Reference)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	imgOpts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}

	for i, line := range req.Tickets {
		png, err := GenerateQRCodePNG(QRPayload(req.Reference, line), qrSizePx)
		if err != nil {
			return nil, err
		}

		pdf.AddPage()

		imgName := fmt.Sprintf("qr_%d", i)
		pdf.RegisterImageOptionsReader(imgName, imgOpts, bytes.NewReader(png))
		qrX := (210.0 - 100.0) / 2
		pdf.ImageOptions(imgName, qrX, 20, 100, 100, false, imgOpts, 0, "")
		pdf.SetY(125)

		pdf.SetDrawColor(200, 200, 200)
		pdf.SetLineWidth(0.5)
		pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
		pdf.Ln(8)

		pdf.SetFont("Arial", "B", 20)
		pdf.CellFormat(0, 10, fmt.Sprintf("Order %s", req.Reference), "", 1, "C", false, 0, "")
		pdf.Ln(4)

		row := func(label, value string) {
			pdf.SetX(30)
			pdf.SetFont("Arial", "", 14)
			pdf.CellFormat(50, 9, label, "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 9, value, "", 1, "L", false, 0, "")
		}
		row("Seat:", line.Seat)
		row("Category:", line.Category)
		row("Price:", fmt.Sprintf("%s %s", line.Price.StringFixed(2), req.Currency))
		row("Ticket:", line.TicketID.String())
		if !req.PaidAt.IsZero() {
			row("Paid at:", req.PaidAt.Format("02 Jan 2006 15:04 MST"))
		}

		pdf.SetY(-25)
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("Ticket %d of %d - present this code at the entrance", i+1, len(req.Tickets)), "", 0, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
