package sqs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/simplequeue/sqs/wire"
)

// BodyCodec converts message bodies to and from their wire text. A producer
// and a consumer exchanging messages must use symmetric codecs.
type BodyCodec[B any] interface {
	Encode(body B) (string, error)
	Decode(payload string) (B, error)
}

// CodecFunc adapts an encode/decode function pair to BodyCodec.
type CodecFunc[B any] struct {
	EncodeFunc func(body B) (string, error)
	DecodeFunc func(payload string) (B, error)
}

func (c CodecFunc[B]) Encode(body B) (string, error) {
	return c.EncodeFunc(body)
}

func (c CodecFunc[B]) Decode(payload string) (B, error) {
	return c.DecodeFunc(payload)
}

var (
	errPayloadTooShort = errors.New("payload shorter than its quotes")
	errLineBreak       = errors.New("text body contains a line break")
)

type textCodec struct{}

// TextCodec wraps string bodies in double quotes.
//
// Decoding strips exactly the first and the last character without looking
// at them, so a body that itself starts or ends with a quote does not
// survive a round trip unchanged.
//
// Bodies containing CR or LF are rejected: the broker reads them as
// separate protocol lines.
func TextCodec() BodyCodec[string] {
	return textCodec{}
}

func (textCodec) Encode(body string) (string, error) {
	if strings.ContainsAny(body, "\r\n") {
		return "", errLineBreak
	}
	return string(wire.TextQuote) + body + string(wire.TextQuote), nil
}

func (textCodec) Decode(payload string) (string, error) {
	if len(payload) < 2 {
		return "", fmt.Errorf("text body %q: %w", payload, errPayloadTooShort)
	}
	return payload[1 : len(payload)-1], nil
}

type jsonCodec[T any] struct{}

// JSONCodec encodes bodies of any type as JSON.
func JSONCodec[T any]() BodyCodec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Encode(body T) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (jsonCodec[T]) Decode(payload string) (T, error) {
	var body T
	err := json.Unmarshal([]byte(payload), &body)
	return body, err
}

// StructuredBody is a typed, open-ended JSON body:
//
//	{"type": "user.created", "content": {"id": 42}}
type StructuredBody struct {
	Type    string         `json:"type"`
	Content map[string]any `json:"content,omitempty"`
}

// StructuredCodec encodes StructuredBody values as JSON objects with a
// "type" discriminator. A payload without a type is rejected.
func StructuredCodec() BodyCodec[StructuredBody] {
	return CodecFunc[StructuredBody]{
		EncodeFunc: jsonCodec[StructuredBody]{}.Encode,
		DecodeFunc: func(payload string) (StructuredBody, error) {
			body, err := jsonCodec[StructuredBody]{}.Decode(payload)
			if err != nil {
				return StructuredBody{}, err
			}
			if body.Type == "" {
				return StructuredBody{}, errors.New("structured body has no type")
			}
			return body, nil
		},
	}
}
