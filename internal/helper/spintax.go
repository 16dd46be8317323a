package helper

import (
	"math/rand"
	"strings"
	"time"
)

// RenderSpintax expands dynamic variables, then picks one option from every
// {a|b|c} group.
func RenderSpintax(text string) string {
	result := RenderDynamicVariables(text, time.Now())

	for {
		start := strings.Index(result, "{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		options := strings.Split(result[start+1:end], "|")
		chosen := options[rand.Intn(len(options))]

		result = result[:start] + chosen + result[end+1:]
	}
	return result
}

// RenderDynamicVariables replaces {TIME_GREETING}, {DAY_NAME} and {DATE}.
func RenderDynamicVariables(text string, now time.Time) string {
	var greeting string
	switch hour := now.Hour(); {
	case hour >= 5 && hour < 12:
		greeting = "Good morning"
	case hour >= 12 && hour < 17:
		greeting = "Good afternoon"
	case hour >= 17 && hour < 21:
		greeting = "Good evening"
	default:
		greeting = "Good night"
	}

	r := strings.NewReplacer(
		"{TIME_GREETING}", greeting,
		"{DAY_NAME}", now.Weekday().String(),
		"{DATE}", FormatDate(now),
	)
	return r.Replace(text)
}

// FormatDate renders dates as day.month.year.
func FormatDate(t time.Time) string {
	return t.Format("2.1.2006")
}
