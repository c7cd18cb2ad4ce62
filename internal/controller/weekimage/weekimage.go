// Package weekimage рисует недельную сетку слотов учителя в PNG
package weekimage

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/Freeeeeet/driving_booking/internal/model"
)

// Размеры и отступы
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 120
	dayPaddingX      = 8
	minSlotHeight    = 8.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	daysInWeek       = 7
	hourPaddingTop   = 1
	hourPaddingBot   = 1
	defaultMinHour   = 8
	defaultMaxHour   = 20
)

// Шрифты
const (
	titleFontSize      = 25.0
	dayFontSize        = 24.0
	hourLabelFontSize  = 16.0
	slotTimeFontSize   = 15.0
	legendItemFontSize = 12.0
)

var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 125}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{220, 220, 220, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	slotFreeColor     = color.RGBA{133, 193, 85, 220}
	slotPartialColor  = color.RGBA{255, 214, 102, 230}
	slotFullColor     = color.RGBA{255, 182, 193, 255}
	slotTextColor     = color.RGBA{20, 24, 28, 230}
	slotFullTextColor = color.RGBA{120, 40, 50, 255}
	slotShadowColor   = color.RGBA{0, 0, 0, 20}

	legendItemColor = color.RGBA{70, 74, 78, 220}
)

type fontWeight int

const (
	weightRegular fontWeight = iota
	weightBold
)

var (
	fontsOnce  sync.Once
	parsedFont = map[fontWeight]*opentype.Font{}
)

func loadFonts() {
	if f, err := opentype.Parse(goregular.TTF); err == nil {
		parsedFont[weightRegular] = f
	}
	if f, err := opentype.Parse(gobold.TTF); err == nil {
		parsedFont[weightBold] = f
	}
}

// setFont ставит шрифт нужного размера, при ошибке basicfont
func setFont(dc *gg.Context, size float64, weight fontWeight) {
	fontsOnce.Do(loadFonts)

	if f := parsedFont[weight]; f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// placedSlot слот с разобранным временем
type placedSlot struct {
	slot       *model.Slot
	start, end time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

// Render рисует неделю, в которую попадает day. Слоты вне недели пропускаются.
func Render(day, now time.Time, slots []*model.Slot) ([]byte, error) {
	loc := day.Location()
	weekStart := mondayOf(day)
	weekEnd := weekStart.AddDate(0, 0, daysInWeek)

	byDay := make(map[string][]placedSlot)
	var placed []placedSlot
	for _, s := range slots {
		start, err := s.StartsAt(loc)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", s.ID, err)
		}
		end, err := s.EndsAt(loc)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", s.ID, err)
		}
		if start.Before(weekStart) || !start.Before(weekEnd) {
			continue
		}
		p := placedSlot{slot: s, start: start, end: end}
		byDay[s.Date] = append(byDay[s.Date], p)
		placed = append(placed, p)
	}

	hours := hoursFor(placed)
	today := startOfDay(now.In(loc))
	highlightToday := !today.Before(weekStart) && today.Before(weekEnd)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / daysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, weekStart)
	drawHourLabels(dc, hours, cellHeight)

	for i := 0; i < daysInWeek; i++ {
		date := weekStart.AddDate(0, 0, i)
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i, highlightToday && date.Equal(today))
		drawDayHeader(dc, date, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, p := range byDay[date.Format(model.DateLayout)] {
			drawSlot(dc, p, x, y, dayWidth, hours, cellHeight)
		}
	}

	if highlightToday {
		drawNowLine(dc, now.In(loc), hours, cellHeight, dayWidth)
	}
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// mondayOf начало недели (Пн) для даты
func mondayOf(t time.Time) time.Time {
	d := startOfDay(t)
	offset := int(d.Weekday()) - 1
	if d.Weekday() == time.Sunday {
		offset = 6
	}
	return d.AddDate(0, 0, -offset)
}

func hoursFor(slots []placedSlot) hourRange {
	minHour, maxHour := 24, 0
	for _, p := range slots {
		endH := p.end.Hour()
		if p.end.Minute() > 0 {
			endH++
		}
		minHour = min(minHour, p.start.Hour())
		maxHour = max(maxHour, endH)
	}
	if minHour == 24 {
		minHour, maxHour = defaultMinHour, defaultMaxHour
	}

	start := max(minHour-hourPaddingTop, 0)
	end := min(maxHour+hourPaddingBot, 23)
	return hourRange{start: start, end: end, total: end - start + 1}
}

func drawHeader(dc *gg.Context, weekStart time.Time) {
	weekEnd := weekStart.AddDate(0, 0, daysInWeek-1)
	title := monthNames[weekStart.Month()]
	if weekEnd.Month() != weekStart.Month() {
		title += " - " + monthNames[weekEnd.Month()]
	}

	setFont(dc, titleFontSize, weightBold)
	dc.SetColor(textColor)
	w, h := dc.MeasureString(title)
	dc.DrawStringAnchored(title, w/2+10, float64(headerHeight)/8+h/2, 0, 0)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	setFont(dc, hourLabelFontSize, weightRegular)
	dc.SetColor(hourLabelColor)
	for i := 0; i < hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hours.start+i), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, index int, today bool) {
	switch {
	case today:
		dc.SetColor(todayBgColor)
	case index%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	setFont(dc, dayFontSize, weightBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+float64(dayWidth)/2, y, 0.5, -1)
	dc.DrawStringAnchored(weekdayShort[date.Weekday()], x+float64(dayWidth)/2, y, 0.5, -0.2)
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)
	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawSlot(dc *gg.Context, p placedSlot, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	startHour := float64(p.start.Hour()) + float64(p.start.Minute())/60.0
	endHour := float64(p.end.Hour()) + float64(p.end.Minute())/60.0

	slotY := y + (startHour-float64(hours.start))*cellHeight
	slotHeight := max((endHour-startHour)*cellHeight, minSlotHeight)
	slotWidth := float64(dayWidth) - float64(dayPaddingX*2)
	left := x + float64(dayPaddingX)

	fill := slotColor(p.slot)

	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(left+shadowOffset, slotY+2+shadowOffset, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(left, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(darken(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(left, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Stroke()

	txt := slotTextColor
	if p.slot.IsFull() {
		txt = slotFullTextColor
	}

	setFont(dc, slotTimeFontSize, weightBold)
	dc.SetColor(txt)
	txtX := left + 8
	txtY := slotY + 18
	dc.DrawStringAnchored(p.slot.StartTime+"-"+p.slot.EndTime, txtX, txtY, 0, 0)

	if slotHeight > 25 {
		setFont(dc, slotTimeFontSize-2, weightRegular)
		label := fmt.Sprintf("%s %d/%d", lessonLabels[p.slot.LessonType], p.slot.CurrentBookings, p.slot.MaxCapacity)
		dc.DrawStringAnchored(label, txtX, txtY+16, 0, 0)
	}
}

// slotColor цвет по заполненности
func slotColor(s *model.Slot) color.RGBA {
	switch {
	case s.IsFull():
		return slotFullColor
	case s.CurrentBookings > 0:
		return slotPartialColor
	default:
		return slotFreeColor
	}
}

func darken(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func drawNowLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	current := float64(now.Hour()) + float64(now.Minute())/60.0
	if current < float64(hours.start) || current > float64(hours.end) {
		return
	}

	lineY := float64(headerHeight) + (current-float64(hours.start))*cellHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2.0)
	dc.DrawLine(float64(leftLabelsWidth), lineY, float64(leftLabelsWidth+daysInWeek*dayWidth), lineY)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	items := []struct {
		label string
		clr   color.Color
	}{
		{"Свободно", slotFreeColor},
		{"Есть записи", slotPartialColor},
		{"Мест нет", slotFullColor},
	}

	const boxW, boxH = 20.0, 14.0
	lx := float64(leftLabelsWidth + daysInWeek*dayWidth + 10)
	ly := float64(imageHeight) - 78.0

	setFont(dc, legendItemFontSize, weightRegular)
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(lx, ly, boxW, boxH, 3)
		dc.Fill()

		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.label, lx+boxW+8, ly+boxH/2+1, 0, 0.2)
		ly += boxH + 14
	}
}

var weekdayShort = map[time.Weekday]string{
	time.Monday:    "Пн",
	time.Tuesday:   "Вт",
	time.Wednesday: "Ср",
	time.Thursday:  "Чт",
	time.Friday:    "Пт",
	time.Saturday:  "Сб",
	time.Sunday:    "Вс",
}

var monthNames = map[time.Month]string{
	time.January:   "Январь",
	time.February:  "Февраль",
	time.March:     "Март",
	time.April:     "Апрель",
	time.May:       "Май",
	time.June:      "Июнь",
	time.July:      "Июль",
	time.August:    "Август",
	time.September: "Сентябрь",
	time.October:   "Октябрь",
	time.November:  "Ноябрь",
	time.December:  "Декабрь",
}

var lessonLabels = map[model.LessonType]string{
	model.LessonTypeTheoretical: "Теория",
	model.LessonTypePractical:   "Вождение",
	model.LessonTypeExamPrep:    "Подготовка",
}
