package captcha

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// 画布与字形尺寸
const (
	ImageWidth  = 300
	ImageHeight = 150
	FontSize    = 30
)

// DefaultText 默认挑战文字,用户需按顺序依次点击
const DefaultText = "天远大数据"

// ErrFontUnavailable 字体文件缺失或无法解析。
var ErrFontUnavailable = errors.New("captcha: font unavailable")

// Position 单个字符的中心坐标
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Challenge 渲染结果
type Challenge struct {
	ImageBase64 string
	Positions   []Position
	CharSize    int
	Prompt      string
}

// Renderer 文字点击验证码渲染器
type Renderer struct {
	font *truetype.Font
}

// NewRenderer 从字体文件创建渲染器
func NewRenderer(fontPath string) (*Renderer, error) {
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	return NewRendererFromBytes(data)
}

// NewRendererFromBytes 从字体数据创建渲染器
func NewRendererFromBytes(data []byte) (*Renderer, error) {
	parsed, err := freetype.ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	return &Renderer{font: parsed}, nil
}

// Render 在随机背景上绘制挑战文字并返回各字符中心坐标
func (r *Renderer) Render(text string) (*Challenge, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		runes = []rune(DefaultText)
	}

	img := newNoisyBackground()
	positions := PickPositions(ImageWidth, ImageHeight, FontSize, len(runes))

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(r.font)
	ctx.SetFontSize(FontSize)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)
	ctx.SetHinting(font.HintingNone)

	palette := charPalette()
	for i, pos := range positions {
		// 文字周围加两条短干扰线
		for j := 0; j < 2; j++ {
			drawLine(img,
				pos.X-5-rand.Intn(10), pos.Y-5-rand.Intn(10),
				pos.X+5+rand.Intn(10), pos.Y+5+rand.Intn(10),
				color.RGBA{A: 255})
		}

		// 坐标视为字符中心,换算到基线左端
		baseX := pos.X - FontSize/2
		baseY := pos.Y + FontSize/2

		ctx.SetSrc(image.NewUniform(color.RGBA{A: 255}))
		if _, err := ctx.DrawString(string(runes[i]), freetype.Pt(baseX+1, baseY+1)); err != nil {
			return nil, fmt.Errorf("captcha: draw shadow failed: %w", err)
		}
		ctx.SetSrc(image.NewUniform(palette[i%len(palette)]))
		if _, err := ctx.DrawString(string(runes[i]), freetype.Pt(baseX, baseY)); err != nil {
			return nil, fmt.Errorf("captcha: draw char failed: %w", err)
		}
	}

	addNoise(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("captcha: encode png failed: %w", err)
	}
	return &Challenge{
		ImageBase64: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Positions:   positions,
		CharSize:    FontSize,
		Prompt:      buildPrompt(runes),
	}, nil
}

// PickPositions 为 count 个字符选取互不重叠的随机位置。
// 两两间距至少 fontSize+10,拒绝采样最多 50 次,仍失败时按五等分强制排布。
func PickPositions(width, height, fontSize, count int) []Position {
	minDistance := float64(fontSize + 10)
	positions := make([]Position, 0, count)

	for i := 0; i < count; i++ {
		placed := false
		for attempt := 0; attempt < 50; attempt++ {
			x := fontSize + rand.Intn(width-2*fontSize)
			y := fontSize + rand.Intn(height-2*fontSize)

			tooClose := false
			for _, pos := range positions {
				dx := float64(x - pos.X)
				dy := float64(y - pos.Y)
				if math.Sqrt(dx*dx+dy*dy) < minDistance {
					tooClose = true
					break
				}
			}
			if !tooClose {
				positions = append(positions, Position{X: x, Y: y})
				placed = true
				break
			}
		}
		if !placed {
			positions = append(positions, Position{
				X: width/5 + i*(width/5),
				Y: height/2 + rand.Intn(41) - 20,
			})
		}
	}
	return positions
}

func newNoisyBackground() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ImageWidth, ImageHeight))
	bg := color.RGBA{
		R: uint8(200 + rand.Intn(56)),
		G: uint8(200 + rand.Intn(56)),
		B: uint8(200 + rand.Intn(56)),
		A: 255,
	}
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	for i := 0; i < 5; i++ {
		drawLine(img,
			rand.Intn(ImageWidth), rand.Intn(ImageHeight),
			rand.Intn(ImageWidth), rand.Intn(ImageHeight),
			color.RGBA{
				R: uint8(100 + rand.Intn(51)),
				G: uint8(100 + rand.Intn(51)),
				B: uint8(100 + rand.Intn(51)),
				A: 255,
			})
	}
	return img
}

func addNoise(img *image.RGBA) {
	for i := 0; i < 10; i++ {
		drawLine(img,
			rand.Intn(ImageWidth), rand.Intn(ImageHeight),
			rand.Intn(ImageWidth), rand.Intn(ImageHeight),
			randomDarkColor())
	}
	for i := 0; i < 20; i++ {
		drawDot(img, rand.Intn(ImageWidth), rand.Intn(ImageHeight), 1+rand.Intn(3), randomDarkColor())
	}
}

func randomDarkColor() color.RGBA {
	return color.RGBA{
		R: uint8(rand.Intn(201)),
		G: uint8(rand.Intn(201)),
		B: uint8(rand.Intn(201)),
		A: 255,
	}
}

func charPalette() []color.RGBA {
	palette := []color.RGBA{
		{R: 255, A: 255},
		{B: 255, A: 255},
		{G: 128, A: 255},
		{R: 128, B: 128, A: 255},
		{R: 255, G: 140, A: 255},
	}
	rand.Shuffle(len(palette), func(i, j int) {
		palette[i], palette[j] = palette[j], palette[i]
	})
	return palette
}

func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := math.Abs(float64(x2 - x1))
	dy := math.Abs(float64(y2 - y1))
	steps := int(math.Max(dx, dy))
	if steps == 0 {
		img.SetRGBA(x1, y1, c)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x1 + int(t*float64(x2-x1))
		y := y1 + int(t*float64(y2-y1))
		if image.Pt(x, y).In(img.Bounds()) {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawDot(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx := float64(x - cx)
			dy := float64(y - cy)
			if dx*dx+dy*dy <= float64(radius*radius) && image.Pt(x, y).In(img.Bounds()) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func buildPrompt(runes []rune) string {
	return fmt.Sprintf("请按顺序依次点击:%s", string(runes))
}
