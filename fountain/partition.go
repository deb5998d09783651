package fountain

// SourceBlock is one fixed-size piece of the message being transferred.
type SourceBlock struct {
	// Position of the block in source order.
	Index int

	// Block content.
	// Always exactly the block size;
	// the final block of a message is zero padded.
	Data []byte

	// Set on blocks produced by a [Decoder],
	// either by peeling or by parity reconstruction.
	Recovered bool
}

// Partition splits data into blocks of blockSize bytes.
//
// If len(data) is not a multiple of blockSize,
// the final block is padded with zero bytes.
// The caller is responsible for recording len(data)
// so that the padding can be removed after reconstruction
// (the [Encoder] records it in its [Header]).
//
// The returned blocks share one newly allocated backing array;
// data is not retained.
func Partition(data []byte, blockSize int) ([]SourceBlock, error) {
	if blockSize <= 0 {
		return nil, InvalidConfigError{
			Field:  "BlockSize",
			Reason: "must be positive",
		}
	}

	n := numBlocks(len(data), blockSize)
	buf := make([]byte, n*blockSize)
	copy(buf, data)

	blocks := make([]SourceBlock, n)
	for i := range blocks {
		blocks[i] = SourceBlock{
			Index: i,
			Data:  buf[i*blockSize : (i+1)*blockSize : (i+1)*blockSize],
		}
	}
	return blocks, nil
}

// numBlocks reports how many blocks of size blockSize
// are required to hold length bytes.
func numBlocks(length, blockSize int) int {
	n := length / blockSize
	if length%blockSize > 0 {
		n++
	}
	return n
}
