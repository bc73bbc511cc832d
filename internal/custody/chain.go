package custody

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

const genesisHash = "0x0"

// Block records one confirmed transaction. Its hash covers the previous
// block's hash, so the log cannot be rewritten without breaking Verify.
type Block struct {
	Index     uint64    `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	PrevHash  string    `json:"prevHash"`
	From      Address   `json:"from"`
	Method    string    `json:"method"`
	Room      RoomID    `json:"room"`
	Events    []Event   `json:"-"`
	Hash      string    `json:"hash"`
}

type chain struct {
	blocks []Block
}

func newChain(now time.Time) *chain {
	genesis := Block{Timestamp: now, PrevHash: genesisHash, Method: "genesis"}
	genesis.Hash = hashBlock(genesis)
	return &chain{blocks: []Block{genesis}}
}

func (c *chain) append(now time.Time, from Address, method string, room RoomID, events []Event) Block {
	latest := c.blocks[len(c.blocks)-1]
	b := Block{
		Index:     latest.Index + 1,
		Timestamp: now,
		PrevHash:  latest.Hash,
		From:      from,
		Method:    method,
		Room:      room,
		Events:    events,
	}
	b.Hash = hashBlock(b)
	c.blocks = append(c.blocks, b)
	return b
}

func (c *chain) verify() error {
	if len(c.blocks) == 0 || c.blocks[0].PrevHash != genesisHash {
		return fmt.Errorf("invalid genesis block")
	}
	for i := 1; i < len(c.blocks); i++ {
		cur, prev := c.blocks[i], c.blocks[i-1]
		if cur.Index != prev.Index+1 {
			return fmt.Errorf("block %d: index %d after %d", i, cur.Index, prev.Index)
		}
		if cur.PrevHash != prev.Hash {
			return fmt.Errorf("block %d: prev hash %s, want %s", i, cur.PrevHash, prev.Hash)
		}
		if want := hashBlock(cur); cur.Hash != want {
			return fmt.Errorf("block %d: hash %s, want %s", i, cur.Hash, want)
		}
	}
	return nil
}

func hashBlock(b Block) string {
	events := make([]string, len(b.Events))
	for i, e := range b.Events {
		// event payloads are plain structs of strings and Ints, which always marshal
		args, _ := json.Marshal(e)
		events[i] = e.EventName() + string(args)
	}
	data := fmt.Sprintf("%d|%d|%s|%s|%s|%s|%v",
		b.Index, b.Timestamp.UnixNano(), b.PrevHash, b.From, b.Method, b.Room, events)
	sum := sha256.Sum256([]byte(data))
	return "0x" + hex.EncodeToString(sum[:])
}
