// Package corefmt 把 PRNG 快照轉成可搬運的格式。
//
//   - HTTP / JSON：EncodeSnap 產生 base64url（無 padding），可直接放進 query 或 JSON 字串。
//   - 檔案：WriteFrame 寫出 "MLS1" || uvarint(len) || payload || crc32(payload)，
//     讀回時會檢查 magic 與校驗碼，避免把截斷或拼錯的檔案當成快照還原。
package corefmt

import (
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/zintix-labs/minelab/errs"
)

var magic = [4]byte{'M', 'L', 'S', '1'}

func EncodeSnap(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSnap 空字串視為錯誤。
func DecodeSnap(s string) ([]byte, error) {
	if s == "" {
		return nil, errs.NewKind(errs.Warn, errs.InvalidConfig, "empty snapshot")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.WrapKind(err, errs.Warn, errs.InvalidConfig, "snapshot is not base64url")
	}
	return b, nil
}

func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(magic)+binary.MaxVarintLen64+len(payload)+4)
	buf = append(buf, magic[:]...)
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(payload))
	if _, err := w.Write(buf); err != nil {
		return errs.Wrap(err, "write snapshot frame failed")
	}
	return nil
}

// ReadFrame 讀回 WriteFrame 的內容；maxBytes 為 payload 上限，0 不限制。
//
// 只讀走一個 frame 的位元組，r 之後的內容不受影響。
func ReadFrame(r io.Reader, maxBytes uint64) ([]byte, error) {
	var head [len(magic)]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, errs.Wrap(err, "read snapshot frame header failed")
	}
	if head != magic {
		return nil, errs.NewKind(errs.Warn, errs.InvalidConfig, "not a snapshot frame")
	}
	n, err := binary.ReadUvarint(byteReader{r})
	if err != nil {
		return nil, errs.Wrap(err, "read snapshot frame length failed")
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, errs.NewKind(errs.Warn, errs.InvalidConfig, "snapshot frame exceeds size limit")
	}
	body := make([]byte, n+4)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errs.Wrap(err, "snapshot frame truncated")
	}
	payload, sum := body[:n], binary.BigEndian.Uint32(body[n:])
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, errs.NewKind(errs.Warn, errs.InvalidConfig, "snapshot frame checksum mismatch")
	}
	return payload, nil
}

// byteReader 逐位元組讀，不預讀
type byteReader struct{ io.Reader }

func (b byteReader) ReadByte() (byte, error) {
	var one [1]byte
	_, err := io.ReadFull(b.Reader, one[:])
	return one[0], err
}
