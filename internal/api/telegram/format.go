package telegram

import (
	"fmt"
	"sort"
	"strings"

	app "linac-qc/internal/application"
	"linac-qc/internal/domain/entity"
)

const dateLayout = "02.01.2006 15:04"

// FormatLeafStart формирует приглашение к загрузке серии.
func FormatLeafStart(expected int) string {
	return fmt.Sprintf("📂 Отправьте %d DICOM-снимков теста положения лепестков в любом порядке.", expected)
}

// FormatProfile выводит таблицу эталонных позиций.
func FormatProfile(positions []entity.ReferencePosition) string {
	var sb strings.Builder
	sb.WriteString("📐 Эталонные позиции (верх / низ, мм):\n")
	for _, p := range positions {
		fmt.Fprintf(&sb, "%d: %+.1f / %+.1f\n", p.Position, p.Top, p.Bottom)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatProgress сообщает о принятом снимке серии.
func FormatProgress(p *app.LeafProgress) string {
	s := p.Summary
	name := s.Filename
	if name == "" {
		name = fmt.Sprintf("снимок %d", s.UploadOrder)
	}

	if !s.Complete() {
		return fmt.Sprintf("📥 %d/%d %s: открытые лепестки не найдены", p.Received, p.Expected, name)
	}
	return fmt.Sprintf("📥 %d/%d %s: верх %.2f мм, низ %.2f мм", p.Received, p.Expected, name, *s.TopAverage, *s.BottomAverage)
}

// FormatIdentification выводит итог идентификации серии.
func FormatIdentification(r *entity.IdentificationReport) string {
	images := make([]entity.IdentifiedImageSummary, len(r.Images))
	copy(images, r.Images)
	sort.SliceStable(images, func(i, j int) bool { return images[i].UploadOrder < images[j].UploadOrder })

	var sb strings.Builder
	if r.Valid {
		sb.WriteString("✅ Все позиции определены однозначно.\n\n")
	} else {
		sb.WriteString("⚠️ Позиции не удалось определить однозначно, требуется ручная проверка.\n\n")
	}
	if !r.TestDate.IsZero() {
		fmt.Fprintf(&sb, "📅 Дата теста: %s\n\n", r.TestDate.Format(dateLayout))
	}

	for _, img := range images {
		pos := "—"
		if img.Identified() {
			pos = fmt.Sprintf("%d", img.Position)
		}
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("#%d", img.UploadOrder)
		}
		fmt.Fprintf(&sb, "%d. %s → позиция %s\n", img.UploadOrder, name, pos)
	}

	if len(r.Errors) > 0 {
		sb.WriteString("\nНарушения:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "• %s\n", e)
		}
	}

	fmt.Fprintf(&sb, "\nОтчёт: %s", r.ID)
	return sb.String()
}

// FormatFieldReport выводит размеры поля и вердикт по допуску.
func FormatFieldReport(r *entity.FieldReport) string {
	if r.Closed || r.Dimensions == nil {
		return "⚠️ Поле не обнаружено (закрыто)."
	}

	d := r.Dimensions
	var sb strings.Builder
	fmt.Fprintf(&sb, "📏 Поле: %.2f × %.2f мм\n", d.WidthMM, d.HeightMM)
	fmt.Fprintf(&sb, "🎯 Центр в изоцентре: (%.2f, %.2f) мм\n", d.CenterXIso, d.CenterYIso)
	if r.SizeCheck.Valid {
		orientation := ""
		if r.SizeCheck.Rotated {
			orientation = " (повёрнуто)"
		}
		fmt.Fprintf(&sb, "✅ Соответствует %s%s", r.SizeCheck.Matched, orientation)
	} else {
		fmt.Fprintf(&sb, "❌ %s", r.SizeCheck.Message)
	}
	if r.Shape != nil {
		if r.Shape.Valid {
			fmt.Fprintf(&sb, "\n📐 Углы: %s", r.Shape.Message)
		} else {
			fmt.Fprintf(&sb, "\n❌ Углы: %s", r.Shape.Message)
			for _, c := range r.Shape.Corners {
				if !c.Valid {
					fmt.Fprintf(&sb, "\n• (%d, %d): %.1f°", c.Corner[0], c.Corner[1], c.Degrees)
				}
			}
		}
	}
	return sb.String()
}

// FormatSlitReport выводит ширину найденных щелей.
func FormatSlitReport(r *entity.SlitReport) string {
	if len(r.Slits) == 0 {
		return "⚠️ Щели не обнаружены."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📏 Щели (%d), пиксель %.3f мм:\n", len(r.Slits), r.PixelSpacing)
	for _, sl := range r.Slits {
		fmt.Fprintf(&sb, "%d. u=%.0f v=%.0f: %.2f мм (%d px)\n", sl.Index, sl.CenterU, sl.CenterV, sl.WidthMM, sl.WidthPx)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatRejected объясняет, почему снимок не принят.
func FormatRejected(filename string, err error) string {
	return fmt.Sprintf("⚠️ Снимок %s не может быть проанализирован: %v", filename, err)
}
