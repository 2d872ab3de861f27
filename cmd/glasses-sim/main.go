// glasses-sim: simulated smart glasses for local development.
// Connects to a glance server, answers photo, location, audio and storage
// requests, and sends button presses and transcriptions typed on stdin.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/protocol"
)

var (
	serverURL = flag.String("server", "ws://localhost:3000/ws/device", "Device websocket endpoint")
	userID    = flag.String("user", "sim-user", "User id sent in the hello message")
	photoPath = flag.String("photo", "", "JPEG to return for photo requests (default: generated)")
	lat       = flag.Float64("lat", 40.7128, "Latitude reported by the simulated GPS")
	lon       = flag.Float64("lon", -74.0060, "Longitude reported by the simulated GPS")
	accuracy  = flag.Float64("accuracy", 5, "Horizontal accuracy in meters")
	wordsPerS = flag.Float64("wps", 3, "Simulated speech rate in words per second")
)

// glasses is the simulated device state.
type glasses struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	photo []byte

	mu       sync.Mutex
	storage  map[string]string
	stopPlay context.CancelFunc
	playing  int
}

func main() {
	flag.Parse()
	logger := log.Init(os.Getenv("LOG_LEVEL"))

	img, err := loadPhoto(*photoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "photo: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *serverURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *serverURL, err)
		os.Exit(1)
	}
	defer conn.Close()

	g := &glasses{conn: conn, photo: img, storage: make(map[string]string)}
	if err := g.send(protocol.TypeHello, "", protocol.HelloData{UserID: *userID, DeviceID: "glasses-sim"}); err != nil {
		fmt.Fprintf(os.Stderr, "hello: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("👓 Connected to %s as %s\n", *serverURL, *userID)
	fmt.Println("   b = short press · l = long press · t <text> = transcription · q = quit")

	go g.readInput(stop)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("connection closed", "error", err)
			}
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			logger.Warn("bad message from server", "error", err)
			continue
		}
		g.handle(ctx, msg)
	}
}

func (g *glasses) handle(ctx context.Context, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypePhotoRequest:
		fmt.Println("📸 Photo requested")
		g.send(protocol.TypePhotoResponse, msg.ID, protocol.PhotoData{
			RequestID: uuid.NewString(),
			MimeType:  "image/jpeg",
			Timestamp: time.Now().UnixMilli(),
			Data:      base64.StdEncoding.EncodeToString(g.photo),
		})

	case protocol.TypeLocationRequest:
		g.send(protocol.TypeLocationResponse, msg.ID, map[string]any{
			"lat":       *lat,
			"lng":       *lon,
			"accuracy":  *accuracy,
			"timestamp": time.Now().UnixMilli(),
		})

	case protocol.TypeSpeak:
		var d protocol.SpeakData
		msg.ParseData(&d)
		fmt.Printf("🗣  %s\n", d.Text)
		go g.play(ctx, msg.ID, len(strings.Fields(d.Text)))

	case protocol.TypePlayAudio:
		var d protocol.PlayAudioData
		msg.ParseData(&d)
		fmt.Printf("🔊 Playing %s\n", d.AudioURL)
		go g.play(ctx, msg.ID, 10)

	case protocol.TypeStopAudio:
		g.mu.Lock()
		cancel := g.stopPlay
		g.stopPlay = nil
		g.mu.Unlock()
		if cancel == nil {
			g.send(protocol.TypeError, msg.ID, protocol.ErrorData{Message: "nothing is playing"})
			return
		}
		fmt.Println("⏹  Audio stopped")
		cancel()
		g.send(protocol.TypeAck, msg.ID, nil)

	case protocol.TypeStorageGet:
		var d protocol.StorageGetData
		msg.ParseData(&d)
		g.mu.Lock()
		v, ok := g.storage[d.Key]
		g.mu.Unlock()
		g.send(protocol.TypeStorageValue, msg.ID, protocol.StorageValueData{Key: d.Key, Value: v, Found: ok})

	case protocol.TypeStorageSet:
		var d protocol.StorageSetData
		msg.ParseData(&d)
		g.mu.Lock()
		g.storage[d.Key] = d.Value
		g.mu.Unlock()
		g.send(protocol.TypeAck, msg.ID, nil)

	case protocol.TypePing:
		g.send(protocol.TypePong, msg.ID, nil)
	}
}

// play simulates playback lasting roughly words/wps seconds and acks when done.
func (g *glasses) play(ctx context.Context, requestID string, words int) {
	ctx, cancel := context.WithCancel(ctx)
	g.mu.Lock()
	if g.stopPlay != nil {
		g.stopPlay()
	}
	g.stopPlay = cancel
	g.playing++
	mine := g.playing
	g.mu.Unlock()

	d := time.Duration(float64(words) / *wordsPerS * float64(time.Second))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}

	g.mu.Lock()
	if g.playing == mine {
		g.stopPlay = nil
	}
	g.mu.Unlock()
	cancel()
	g.send(protocol.TypeAck, requestID, nil)
}

func (g *glasses) readInput(quit func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "b":
			g.send(protocol.TypeButtonPress, "", protocol.ButtonPressData{ButtonID: "main", PressType: "short"})
		case line == "l":
			g.send(protocol.TypeButtonPress, "", protocol.ButtonPressData{ButtonID: "main", PressType: "long"})
		case strings.HasPrefix(line, "t "):
			g.send(protocol.TypeTranscription, "", protocol.TranscriptionData{Text: strings.TrimPrefix(line, "t "), IsFinal: true, Language: "en-US"})
		case line == "q":
			quit()
			return
		}
	}
}

func (g *glasses) send(t protocol.MessageType, id string, data any) error {
	msg, err := protocol.NewResponse(id, t, data)
	if err != nil {
		return err
	}
	b, err := msg.Bytes()
	if err != nil {
		return err
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.conn.WriteMessage(websocket.TextMessage, b)
}

func loadPhoto(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / 320), G: uint8(y * 255 / 240), B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
