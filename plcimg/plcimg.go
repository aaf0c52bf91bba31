// package plcimg defines the file format for programs and the resources they need to run.
//
// An Image is encoded as canonical CBOR, so equal images have equal encodings,
// and is identified by the BLAKE3 hash of that encoding.
package plcimg

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"

	"plcvm.org/plcvm/internal/cadata"
	"plcvm.org/plcvm/plctests"
	"plcvm.org/plcvm/pvm1"
)

const (
	Version = 1

	// MaxCodeSize is the largest program which can be addressed by a jump.
	MaxCodeSize = 1 << 16
	// MaxMemorySize is the largest memory region which can be addressed by GET and PUT.
	MaxMemorySize = 1 << 16
	MaxStackSize  = 1 << 16

	// MaxSize is an upper bound on the size of an encoded Image.
	MaxSize = MaxCodeSize + MaxMemorySize + 1024

	DefaultStackSize  = 32
	DefaultMemorySize = 16

	// Ext is the file extension of encoded images.
	Ext = ".plcimg"
)

type ID = cadata.ID

// Image is a program and the capacities of the VM it runs in.
type Image struct {
	V          uint   `cbor:"v"`
	Name       string `cbor:"name"`
	StackSize  uint32 `cbor:"stack"`
	MemorySize uint32 `cbor:"memory"`
	Code       []byte `cbor:"code"`
	// Init is the initial contents of the memory region. It may be shorter than the region.
	Init []byte `cbor:"init,omitempty"`
}

// New returns an Image for the code in p.
func New(name string, p *pvm1.Program, stackSize, memorySize int) *Image {
	return &Image{
		V:          Version,
		Name:       name,
		StackSize:  uint32(stackSize),
		MemorySize: uint32(memorySize),
		Code:       p.Bytes(),
	}
}

func (img *Image) Validate() error {
	if img.V != Version {
		return fmt.Errorf("plcimg: unsupported version %d", img.V)
	}
	if img.StackSize == 0 || img.StackSize > MaxStackSize {
		return fmt.Errorf("plcimg: stack size %d out of range", img.StackSize)
	}
	if img.MemorySize > MaxMemorySize {
		return fmt.Errorf("plcimg: memory size %d out of range", img.MemorySize)
	}
	if len(img.Code) > MaxCodeSize {
		return fmt.Errorf("plcimg: code is too large (%d bytes)", len(img.Code))
	}
	if len(img.Init) > int(img.MemorySize) {
		return fmt.Errorf("plcimg: init (%d bytes) does not fit in memory (%d bytes)", len(img.Init), img.MemorySize)
	}
	return nil
}

// Program loads the code into a new Program.
func (img *Image) Program() (*pvm1.Program, error) {
	p := pvm1.NewProgram(len(img.Code))
	if err := p.Load(img.Code); err != nil {
		return nil, err
	}
	return p, nil
}

// InitialMemory returns a new memory region holding Init.
func (img *Image) InitialMemory() []byte {
	mem := make([]byte, img.MemorySize)
	copy(mem, img.Init)
	return mem
}

// NewVM returns a VM with the capacities of the image, and its memory region.
func (img *Image) NewVM() (*pvm1.VM, []byte) {
	mem := img.InitialMemory()
	return pvm1.New(int(img.StackSize), mem), mem
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("plcimg: failed to create CBOR enc mode: %v", err))
	}
	return em
}()

func Marshal(img *Image) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(img)
}

func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("plcimg: unmarshal: %w", err)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return &img, nil
}

// Hash is the content ID function for encoded images.
func Hash(data []byte) cadata.ID {
	h := blake3.New(32, nil)
	h.Write(data)
	var ret cadata.ID
	h.Sum(ret[:0])
	return ret
}

// IDOf returns the ID of the encoding of img.
func IDOf(img *Image) (ID, error) {
	data, err := Marshal(img)
	if err != nil {
		return ID{}, err
	}
	return Hash(data), nil
}

// ParseHex reads bytecode written as hex digits.
// Whitespace is ignored, and '#' starts a comment which runs to the end of the line.
func ParseHex(name string, src []byte) (*Image, error) {
	var digits []byte
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, f := range strings.Fields(line) {
			digits = append(digits, f...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	code := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(code, digits); err != nil {
		return nil, fmt.Errorf("plcimg: parsing hex: %w", err)
	}
	img := &Image{
		V:          Version,
		Name:       name,
		StackSize:  DefaultStackSize,
		MemorySize: DefaultMemorySize,
		Code:       code,
	}
	return img, img.Validate()
}

// ReadFile reads an image from path.
// Files with the .hex extension are parsed with ParseHex, everything else must be an encoded Image.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".hex" {
		name := strings.TrimSuffix(filepath.Base(path), ".hex")
		return ParseHex(name, data)
	}
	img, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return img, nil
}

// WriteFile encodes img and writes it to path.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FromVec builds a test vector into an Image with the capacities the vectors are written for.
func FromVec(v plctests.Vec) (*Image, error) {
	_, p := plctests.NewVM()
	if err := v.Program(p); err != nil {
		return nil, err
	}
	return New(v.Name, p, plctests.StackSize, plctests.MemorySize), nil
}
