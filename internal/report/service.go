package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"therapy-intake/internal/assessment"
	"therapy-intake/internal/instrument"
	"therapy-intake/internal/intake"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// DefaultFontPaths are tried in order when no font path is configured.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Service forwards finalized submissions to the practice chat: a short alert
// for crisis results, followed by a PDF summary.
type Service struct {
	tgClient  TelegramClient
	chatID    int64
	catalog   *instrument.Catalog
	fontPaths []string
	logger    *zap.Logger
}

func NewService(tg TelegramClient, chatID int64, catalog *instrument.Catalog, fontPaths []string, logger *zap.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tgClient:  tg,
		chatID:    chatID,
		catalog:   catalog,
		fontPaths: fontPaths,
		logger:    logger,
	}
}

// NotifySubmission is a no-op when no chat is configured.
func (s *Service) NotifySubmission(ctx context.Context, sub intake.Submission) error {
	if s.chatID == 0 || s.tgClient == nil {
		return nil
	}
	log := s.logger.With(zap.String("submission_id", sub.ID.String()))

	if sub.Result.CrisisFlag {
		if err := s.tgClient.SendMessage(ctx, s.chatID, CrisisAlert(sub, s.instrumentTitle(sub.Result.InstrumentID))); err != nil {
			return fmt.Errorf("failed to send crisis alert: %w", err)
		}
		log.Info("crisis alert sent")
	}

	pdf, err := s.Render(sub)
	if err != nil {
		return err
	}
	fileName := fmt.Sprintf("assessment_%s.pdf", sub.ID.String())
	if err := s.tgClient.SendDocument(ctx, s.chatID, pdf, fileName); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	log.Info("report sent", zap.Int64("chat_id", s.chatID))
	return nil
}

// Render lays out the submission as an A4 PDF.
func (s *Service) Render(sub intake.Submission) ([]byte, error) {
	res := sub.Result
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, tried %s: %w", strings.Join(s.fontPaths, ", "), fontErr)
	}

	w := &writer{pdf: &pdf}
	w.heading(20, s.instrumentTitle(res.InstrumentID))
	w.br(30)

	w.font(12)
	w.line(fmt.Sprintf("Submission: %s", sub.ID))
	w.line(fmt.Sprintf("Completed: %s", res.CompletedAt.Format("2006-01-02 15:04 MST")))
	w.line(fmt.Sprintf("Score: %d of %d", res.TotalScore, res.MaxScore))
	w.line(fmt.Sprintf("Severity: %s", res.SeverityLabel))
	if res.CrisisFlag {
		w.line("CRISIS INDICATORS PRESENT")
	}
	w.br(10)

	if answers := s.ancillaryLines(res); len(answers) > 0 {
		w.heading(14, "Follow-up answers")
		w.br(15)
		w.font(11)
		for _, l := range answers {
			w.wrapped(l)
		}
		w.br(10)
	}

	w.heading(14, "Recommended next steps")
	w.br(15)
	for _, tier := range res.Recommendations.Tiers {
		w.font(12)
		title := tier.Title
		if tier.Emergency {
			title += " (emergency)"
		}
		w.wrapped(title)
		w.font(11)
		for _, a := range tier.Actions {
			w.wrapped("- " + a)
		}
		w.br(5)
	}

	if len(res.Recommendations.AddOns) > 0 {
		w.heading(14, "Additional guidance")
		w.br(15)
		for _, a := range res.Recommendations.AddOns {
			w.font(12)
			w.wrapped(a.Title)
			w.font(11)
			w.wrapped(strings.TrimSpace(a.Body))
			w.br(5)
		}
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// CrisisAlert is the plain-text message sent ahead of the PDF when a
// submission carries crisis indicators.
func CrisisAlert(sub intake.Submission, title string) string {
	res := sub.Result
	var b strings.Builder
	fmt.Fprintf(&b, "CRISIS INDICATORS: %s\n", title)
	fmt.Fprintf(&b, "Submission %s\n", sub.ID)
	fmt.Fprintf(&b, "Score %d/%d, %s\n", res.TotalScore, res.MaxScore, res.SeverityLabel)
	fmt.Fprintf(&b, "Completed %s", res.CompletedAt.Format("2006-01-02 15:04 MST"))
	return b.String()
}

func (s *Service) instrumentTitle(id string) string {
	if s.catalog != nil {
		if in, err := s.catalog.Get(id); err == nil {
			return in.Title
		}
	}
	return id
}

// ancillaryLines renders follow-up answers as "prompt: label" in declared
// field order, falling back to raw ids for fields the catalog doesn't know.
func (s *Service) ancillaryLines(res assessment.Result) []string {
	if len(res.AncillaryAnswers) == 0 {
		return nil
	}
	var in *instrument.Instrument
	if s.catalog != nil {
		in, _ = s.catalog.Get(res.InstrumentID)
	}

	var lines []string
	seen := make(map[string]bool)
	if in != nil {
		for _, f := range in.AncillaryFields() {
			v, ok := res.AncillaryAnswers[f.ID]
			if !ok {
				continue
			}
			seen[f.ID] = true
			lines = append(lines, fmt.Sprintf("%s: %s", f.Prompt, describe(f, v)))
		}
	}
	var rest []string
	for id := range res.AncillaryAnswers {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		lines = append(lines, fmt.Sprintf("%s: %s", id, res.AncillaryAnswers[id]))
	}
	return lines
}

func describe(f instrument.AncillaryField, v instrument.AncillaryValue) string {
	label := func(value string) string {
		for _, o := range f.Options {
			if o.Value == value {
				return o.Label
			}
		}
		return value
	}
	switch v.Kind {
	case instrument.FieldSingle:
		return label(v.Choice)
	case instrument.FieldMulti:
		if len(v.Choices) == 0 {
			return "none"
		}
		labels := make([]string, len(v.Choices))
		for i, c := range v.Choices {
			labels[i] = label(c)
		}
		return strings.Join(labels, ", ")
	case instrument.FieldBoolean:
		if v.Flag {
			return "yes"
		}
		return "no"
	}
	return v.String()
}

// writer keeps the first gopdf error so layout code can stay linear.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) font(size float64) {
	if w.err == nil {
		w.err = w.pdf.SetFont("DejaVu", "", size)
	}
}

func (w *writer) heading(size float64, text string) {
	w.font(size)
	if w.err == nil {
		w.err = w.pdf.Cell(nil, text)
	}
}

func (w *writer) line(text string) {
	if w.err == nil {
		w.err = w.pdf.Cell(nil, text)
	}
	w.br(15)
}

func (w *writer) wrapped(text string) {
	if w.err != nil || text == "" {
		return
	}
	lines, err := w.pdf.SplitText(text, 500)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		if w.err = w.pdf.Cell(nil, l); w.err != nil {
			return
		}
		w.br(14)
	}
}

func (w *writer) br(h float64) {
	if w.pdf.GetY() > 780 {
		w.pdf.AddPage()
		return
	}
	w.pdf.Br(h)
}
