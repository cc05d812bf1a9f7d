package twitchirc

import (
	"bytes"
	"strings"
)

type tags map[string]string

var tagDecodeSlashMap = map[rune]rune{
	':':  ';',
	's':  ' ',
	'\\': '\\',
	'r':  '\r',
	'n':  '\n',
}

// Parse turns one logical IRC line into a typed event. It never fails:
// malformed input degrades to an UnknownEvent or a variant with zero fields,
// since losing a single bad line must never cost the whole session.
func Parse(line string) Event {
	line = strings.TrimRight(line, "\r\n")

	fields := strings.Split(line, " ")
	index := 0

	tagMap := tags{}
	if index < len(fields) && strings.HasPrefix(fields[index], "@") {
		tagMap = parseTags(fields[index][1:])
		index++
	}

	var source string
	if index < len(fields) && strings.HasPrefix(fields[index], ":") {
		source = fields[index]
		index++
	}

	var verb string
	if index < len(fields) {
		verb = fields[index]
		index++
	}

	args := make([]string, 0, len(fields)-index)
	for _, field := range fields[index:] {
		if field != "" {
			args = append(args, field)
		}
	}

	base := Base{Raw: line, Source: source}

	switch EventKind(verb) {
	case KindMessage:
		return newMessageEvent(base, tagMap, args)
	case KindUserstate:
		return newUserstateEvent(base, tagMap, args)
	case KindUsernotice:
		return newUsernoticeEvent(base, tagMap, args)
	case KindRoomstate:
		return newRoomstateEvent(base, tagMap, args)
	case KindReconnect:
		return ReconnectEvent{Base: base}
	case KindJoin:
		return JoinEvent{Base: base, UserName: sourceLogin(source), Channel: channelArg(args)}
	case KindPart:
		return PartEvent{Base: base, UserName: sourceLogin(source), Channel: channelArg(args)}
	case KindPing:
		// Protocol quirk: the ping source shows up as the first argument,
		// not as the prefix.
		var pingSource string
		if len(args) > 0 {
			pingSource = strings.TrimPrefix(args[0], ":")
		}

		return PingEvent{Base: base, PingSource: pingSource}
	}

	return UnknownEvent{Base: base, Verb: verb, Tags: tagMap, Args: args}
}

// parseTags decodes the @key=value;key=value tag block. Duplicate keys keep
// the last value.
func parseTags(line string) tags {
	ret := tags{}

	for _, tag := range strings.Split(line, ";") {
		parts := strings.SplitN(tag, "=", 2)
		if len(parts) < 2 {
			ret[parts[0]] = ""
			continue
		}

		ret[parts[0]] = parseTagValue(parts[1])
	}

	return ret
}

func parseTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}

	ret := &bytes.Buffer{}
	input := bytes.NewBufferString(v)

	for {
		c, _, err := input.ReadRune()
		if err != nil {
			break
		}

		if c == '\\' {
			c2, _, err := input.ReadRune()
			// A backslash right at the end of the value is dropped.
			if err != nil {
				break
			}

			if replacement, ok := tagDecodeSlashMap[c2]; ok {
				ret.WriteRune(replacement)
			} else {
				ret.WriteRune(c2)
			}
		} else {
			ret.WriteRune(c)
		}
	}

	return ret.String()
}
