// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mavframe

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/bluenviron/gomavlib/v3/pkg/dialect"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

var commonDialect = sync.OnceValue(func() *dialect.ReadWriter {
	readWriter, err := dialect.NewReadWriter(common.Dialect)
	if err != nil {
		panic("mavframe: loading common dialect: " + err.Error())
	}
	return readWriter
})

// checksumSeed returns the CRC_EXTRA byte of a common-dialect message.
func checksumSeed(id uint32) (byte, bool) {
	message := commonDialect().GetMessage(id)
	if message == nil {
		return 0, false
	}
	return message.CRCExtra(), true
}

var (
	namesOnce sync.Once
	names     map[uint32]string
)

// MessageName returns the MAVLink name of a common-dialect message ID,
// for example "HEARTBEAT" for 0. ok is false for IDs outside the
// common dialect.
func MessageName(id uint32) (name string, ok bool) {
	namesOnce.Do(loadNames)
	name, ok = names[id]
	return name, ok
}

func loadNames() {
	names = make(map[uint32]string, len(common.Dialect.Messages))
	for _, message := range common.Dialect.Messages {
		messageType := reflect.TypeOf(message)
		if messageType.Kind() == reflect.Pointer {
			messageType = messageType.Elem()
		}
		names[message.GetID()] = upperSnake(strings.TrimPrefix(messageType.Name(), "Message"))
	}
}

// upperSnake converts a Go identifier such as "GpsRawInt" to the
// MAVLink spelling "GPS_RAW_INT".
func upperSnake(identifier string) string {
	var builder strings.Builder
	runes := []rune(identifier)
	for index, current := range runes {
		if index > 0 && unicode.IsUpper(current) {
			previous := runes[index-1]
			if unicode.IsLower(previous) || unicode.IsDigit(previous) {
				builder.WriteByte('_')
			}
		}
		builder.WriteRune(unicode.ToUpper(current))
	}
	return builder.String()
}
