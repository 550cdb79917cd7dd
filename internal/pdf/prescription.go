package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
)

// PrescriptionData são os dados do receituário. IssuedAt já vem formatado
// (DD/MM/YYYY HH:mm, horário de Brasília).
type PrescriptionData struct {
	RecordID         int64
	PatientName      string
	ProfessionalName string
	ProfessionalCRM  string
	Specialty        string
	Diagnosis        string
	Prescription     string
	IssuedAt         string
	VerifyBaseURL    string
}

// BuildPrescription gera o receituário em A4: cabeçalho com profissional/CRM,
// bloco do paciente, texto da prescrição e rodapé de verificação com hash
// SHA-256 do conteúdo e QR code para o link de verificação.
func BuildPrescription(d PrescriptionData) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Receituario", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, d.ProfessionalName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, d.Specialty+" - "+d.ProfessionalCRM, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Paciente: "+d.PatientName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Emitido em: "+d.IssuedAt, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Prescricao", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, d.Prescription, "", "", false)
	pdf.Ln(6)

	contentHash := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", d.RecordID, d.PatientName, d.ProfessionalCRM, d.Prescription)))
	hashHex := hex.EncodeToString(contentHash[:])

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "Hash SHA-256 do documento: "+hashHex, "", 1, "L", false, 0, "")

	if d.VerifyBaseURL != "" {
		verifyURL := fmt.Sprintf("%s/verify/prescription/%d?h=%s", d.VerifyBaseURL, d.RecordID, hashHex[:16])
		qrPNG, err := qrcode.Encode(verifyURL, qrcode.Medium, 128)
		if err == nil {
			tmpFile, err := os.CreateTemp("", "qr-*.png")
			if err == nil {
				tmpFile.Write(qrPNG)
				path := tmpFile.Name()
				tmpFile.Close()
				defer os.Remove(path)
				pdf.RegisterImage(path, "PNG")
				pdf.Image(path, 15, pdf.GetY(), 30, 30, false, "", 0, "")
				pdf.SetY(pdf.GetY() + 32)
			}
		}
		pdf.CellFormat(0, 5, "Verificacao: "+verifyURL, "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
