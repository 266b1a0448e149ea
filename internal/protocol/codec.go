package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Формат кадра надёжного канала (TCP/KCP):
//
//	u32 BE — длина остатка кадра
//	u16 BE — код типа сообщения
//	u8     — флаги (бит 0 — полезная нагрузка сжата zstd)
//	[]byte — полезная нагрузка (JSON)
//
// Датаграмма ненадёжного канала (UDP):
//
//	u64 BE — идентификатор подключения
//	u16 BE — код типа сообщения
//	[]byte — полезная нагрузка (JSON)
const (
	frameOverhead = 3       // тип + флаги
	maxFrameSize  = 8 << 20 // Защита от повреждённой длины
	compressMin   = 512     // Порог сжатия полезной нагрузки

	flagCompressed byte = 0x01

	datagramHeader = 10 // ID подключения + тип
	// MaxDatagramSize — предел полезного размера UDP-датаграммы
	MaxDatagramSize = 1400
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Frame — декодированный кадр: тип и сырая полезная нагрузка
type Frame struct {
	Type    MsgType
	Payload []byte
}

// Decode разбирает полезную нагрузку кадра в структуру сообщения
func (f *Frame) Decode(target interface{}) error {
	if err := json.Unmarshal(f.Payload, target); err != nil {
		return fmt.Errorf("ошибка десериализации %s: %w", f.Type, err)
	}
	return nil
}

// EncodeFrame сериализует сообщение в кадр надёжного канала.
// Сообщения ненадёжного класса отвергаются: их место в датаграммах.
func EncodeFrame(t MsgType, payload interface{}) ([]byte, error) {
	ch, err := ChannelOf(t)
	if err != nil {
		return nil, err
	}
	if ch == ChannelUnreliable {
		return nil, fmt.Errorf("сообщение %s (%s) не передаётся надёжным каналом", t, ch)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s: %w", t, err)
	}

	var flags byte
	if len(data) >= compressMin {
		data = zstdEncoder.EncodeAll(data, nil)
		flags |= flagCompressed
	}

	frame := make([]byte, 4+frameOverhead+len(data))
	binary.BigEndian.PutUint32(frame[0:4], uint32(frameOverhead+len(data)))
	binary.BigEndian.PutUint16(frame[4:6], uint16(t))
	frame[6] = flags
	copy(frame[7:], data)
	return frame, nil
}

// WriteFrame кодирует сообщение и пишет кадр в поток
func WriteFrame(w io.Writer, t MsgType, payload interface{}) error {
	frame, err := EncodeFrame(t, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("ошибка записи кадра %s: %w", t, err)
	}
	return nil
}

// ReadFrame читает один кадр из потока. Кадр с неизвестным типом —
// ошибка протокола, а не повод молча пропустить данные.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length < frameOverhead || length > maxFrameSize {
		return nil, fmt.Errorf("некорректная длина кадра: %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("ошибка чтения тела кадра: %w", err)
	}

	t := MsgType(binary.BigEndian.Uint16(body[0:2]))
	if !KnownType(t) {
		return nil, fmt.Errorf("неизвестный тип сообщения 0x%02x", uint16(t))
	}

	payload := body[3:]
	if body[2]&flagCompressed != 0 {
		var err error
		payload, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки кадра %s: %w", t, err)
		}
	}

	return &Frame{Type: t, Payload: payload}, nil
}

// EncodeDatagram упаковывает сообщение ненадёжного класса в датаграмму
func EncodeDatagram(connID uint64, t MsgType, payload interface{}) ([]byte, error) {
	ch, err := ChannelOf(t)
	if err != nil {
		return nil, err
	}
	if ch != ChannelUnreliable {
		return nil, fmt.Errorf("сообщение %s (%s) не передаётся ненадёжным каналом", t, ch)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s: %w", t, err)
	}
	if datagramHeader+len(data) > MaxDatagramSize {
		return nil, fmt.Errorf("датаграмма %s превышает %d байт", t, MaxDatagramSize)
	}

	packet := make([]byte, datagramHeader+len(data))
	binary.BigEndian.PutUint64(packet[0:8], connID)
	binary.BigEndian.PutUint16(packet[8:10], uint16(t))
	copy(packet[10:], data)
	return packet, nil
}

// DecodeDatagram разбирает датаграмму ненадёжного канала.
// Сообщение надёжного класса внутри датаграммы — нарушение контракта.
func DecodeDatagram(data []byte) (uint64, *Frame, error) {
	if len(data) < datagramHeader {
		return 0, nil, fmt.Errorf("датаграмма короче заголовка: %d байт", len(data))
	}

	connID := binary.BigEndian.Uint64(data[0:8])
	t := MsgType(binary.BigEndian.Uint16(data[8:10]))

	ch, err := ChannelOf(t)
	if err != nil {
		return 0, nil, err
	}
	if ch != ChannelUnreliable {
		return 0, nil, fmt.Errorf("сообщение %s (%s) пришло ненадёжным каналом", t, ch)
	}

	return connID, &Frame{Type: t, Payload: data[10:]}, nil
}
