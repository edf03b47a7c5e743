// Copyright 2026 The Microkernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"time"
)

// GoogleEmitter formats messages the way glog does: a level letter and a
// timestamp, followed by the formatted message. It is the
// microkernel's default emitter.
type GoogleEmitter struct {
	*Writer
}

var levelChar = map[Level]byte{
	Debug:   'D',
	Info:    'I',
	Warning: 'W',
}

// Emit implements Emitter.
func (g GoogleEmitter) Emit(level Level, timestamp time.Time, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%c%s %s\n", levelChar[level], timestamp.Format("0102 15:04:05.000000"), msg)
	g.write([]byte(line))
}

// JSONEmitter emits one JSON object per line.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.
func (j JSONEmitter) Emit(level Level, timestamp time.Time, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf(`{"level":%d,"time":%q,"msg":%q}`+"\n", level, timestamp.Format(time.RFC3339Nano), msg)
	j.write([]byte(line))
}
