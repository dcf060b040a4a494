package mapk

import (
	"testing"
)

func benchmarkSource() map[string]any {
	return map[string]any{
		"name":    "Acme",
		"address": map[string]any{"city": "Oslo", "zip": "0150"},
		"billing": map[string]any{"city": "Bergen", "zip": 5003},
	}
}

// BenchmarkMapperMemoized maps the same source shape through memoized processors
func BenchmarkMapperMemoized(b *testing.B) {
	m := Must(NewMapper[Customer](MapperOpts{}))
	src := benchmarkSource()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Map(src); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPlainMapper walks the decision table for every value
func BenchmarkPlainMapper(b *testing.B) {
	m := Must(NewPlainMapper[Customer](MapperOpts{}))
	src := benchmarkSource()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Map(src); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBoundMapper maps a struct through a plan fixed up front
func BenchmarkBoundMapper(b *testing.B) {
	m := Must(NewBoundMapper[customerRow, Customer](MapperOpts{}))
	src := customerRow{
		Name:    "Acme",
		Address: addressRow{City: "Oslo", Zip: "0150"},
		Billing: &addressRow{City: "Bergen", Zip: "5003"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Map(src); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMapperStructSource compares against BenchmarkBoundMapper
func BenchmarkMapperStructSource(b *testing.B) {
	m := Must(NewMapper[Customer](MapperOpts{}))
	src := customerRow{
		Name:    "Acme",
		Address: addressRow{City: "Oslo", Zip: "0150"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Map(src); err != nil {
			b.Fatal(err)
		}
	}
}
