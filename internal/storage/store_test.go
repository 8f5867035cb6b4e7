package storage

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		store := NewMemoryStore()

		keys := store.List()
		if len(keys) != 0 {
			t.Errorf("Expected empty store, got %d keys", len(keys))
		}

		_, err := store.Get("movies", "nonexistent")
		if err != ErrKeyNotFound {
			t.Errorf("Expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("put and get values", func(t *testing.T) {
		store := NewMemoryStore()

		if err := store.Put("movies", "1", []byte("value1")); err != nil {
			t.Fatalf("Failed to put value: %v", err)
		}

		value, err := store.Get("movies", "1")
		if err != nil {
			t.Fatalf("Failed to get value: %v", err)
		}

		if !bytes.Equal(value, []byte("value1")) {
			t.Errorf("Expected 'value1', got %s", string(value))
		}
	})

	t.Run("same primary key in different tables does not collide", func(t *testing.T) {
		store := NewMemoryStore()

		if err := store.Put("movies", "1", []byte("movie-value")); err != nil {
			t.Fatalf("Failed to put movies/1: %v", err)
		}
		if err := store.Put("books", "1", []byte("book-value")); err != nil {
			t.Fatalf("Failed to put books/1: %v", err)
		}

		moviesValue, err := store.Get("movies", "1")
		if err != nil {
			t.Fatalf("Failed to get movies/1: %v", err)
		}
		if !bytes.Equal(moviesValue, []byte("movie-value")) {
			t.Errorf("movies/1 = %s, want movie-value", moviesValue)
		}

		booksValue, err := store.Get("books", "1")
		if err != nil {
			t.Fatalf("Failed to get books/1: %v", err)
		}
		if !bytes.Equal(booksValue, []byte("book-value")) {
			t.Errorf("books/1 = %s, want book-value", booksValue)
		}
	})

	t.Run("overwrite existing record", func(t *testing.T) {
		store := NewMemoryStore()

		if err := store.Put("movies", "1", []byte("value1")); err != nil {
			t.Fatalf("Failed to put initial value: %v", err)
		}
		if err := store.Put("movies", "1", []byte("value2")); err != nil {
			t.Fatalf("Failed to overwrite value: %v", err)
		}

		value, err := store.Get("movies", "1")
		if err != nil {
			t.Fatalf("Failed to get value: %v", err)
		}
		if !bytes.Equal(value, []byte("value2")) {
			t.Errorf("Expected 'value2', got %s", string(value))
		}
	})

	t.Run("delete records", func(t *testing.T) {
		store := NewMemoryStore()

		if err := store.Put("movies", "1", []byte("value1")); err != nil {
			t.Fatalf("Failed to put value: %v", err)
		}
		if err := store.Delete("movies", "1"); err != nil {
			t.Fatalf("Failed to delete value: %v", err)
		}

		_, err := store.Get("movies", "1")
		if err != ErrKeyNotFound {
			t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
		}

		keys := store.List()
		if len(keys) != 0 {
			t.Errorf("Expected empty store after delete, got %d keys", len(keys))
		}
	})

	t.Run("delete non-existent record", func(t *testing.T) {
		store := NewMemoryStore()

		if err := store.Delete("movies", "nonexistent"); err != nil {
			t.Errorf("Delete of non-existent record should not error, got %v", err)
		}
	})

	t.Run("list records", func(t *testing.T) {
		store := NewMemoryStore()

		testData := map[string][]byte{
			"1": []byte("value1"),
			"2": []byte("value2"),
			"3": []byte("value3"),
		}

		for pk, v := range testData {
			if err := store.Put("movies", pk, v); err != nil {
				t.Fatalf("Failed to put %s: %v", pk, err)
			}
		}

		keys := store.List()
		if len(keys) != len(testData) {
			t.Errorf("Expected %d keys, got %d", len(testData), len(keys))
		}
	})

	t.Run("empty and nil values", func(t *testing.T) {
		store := NewMemoryStore()

		if err := store.Put("movies", "empty", []byte{}); err != nil {
			t.Fatalf("Failed to put empty value: %v", err)
		}
		value, err := store.Get("movies", "empty")
		if err != nil {
			t.Fatalf("Failed to get empty value: %v", err)
		}
		if len(value) != 0 {
			t.Errorf("Expected empty value, got %d bytes", len(value))
		}

		if err := store.Put("movies", "nil", nil); err != nil {
			t.Fatalf("Failed to put nil value: %v", err)
		}
		value, err = store.Get("movies", "nil")
		if err != nil {
			t.Fatalf("Failed to get nil value: %v", err)
		}
		if value == nil || len(value) != 0 {
			t.Errorf("Expected empty byte slice for nil value, got %v", value)
		}
	})
}

func TestMemoryStoreConcurrency(t *testing.T) {
	t.Run("concurrent writes", func(t *testing.T) {
		store := NewMemoryStore()

		numGoroutines := 100
		numOps := 100

		var wg sync.WaitGroup
		wg.Add(numGoroutines)

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOps; j++ {
					pk := fmt.Sprintf("goroutine-%d-key-%d", id, j)
					value := []byte(fmt.Sprintf("value-%d-%d", id, j))
					if err := store.Put("movies", pk, value); err != nil {
						t.Errorf("Failed to put: %v", err)
					}
				}
			}(i)
		}

		wg.Wait()

		keys := store.List()
		expectedKeys := numGoroutines * numOps
		if len(keys) != expectedKeys {
			t.Errorf("Expected %d keys, got %d", expectedKeys, len(keys))
		}
	})

	t.Run("concurrent reads", func(t *testing.T) {
		store := NewMemoryStore()

		numKeys := 100
		for i := 0; i < numKeys; i++ {
			pk := fmt.Sprintf("key-%d", i)
			value := []byte(fmt.Sprintf("value-%d", i))
			store.Put("movies", pk, value)
		}

		numReaders := 100
		numReads := 1000

		var wg sync.WaitGroup
		wg.Add(numReaders)

		for i := 0; i < numReaders; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numReads; j++ {
					pk := fmt.Sprintf("key-%d", j%numKeys)
					expectedValue := []byte(fmt.Sprintf("value-%d", j%numKeys))

					value, err := store.Get("movies", pk)
					if err != nil {
						t.Errorf("Reader %d failed to get %s: %v", id, pk, err)
						continue
					}

					if !bytes.Equal(value, expectedValue) {
						t.Errorf("Reader %d got wrong value for %s", id, pk)
					}
				}
			}(i)
		}

		wg.Wait()
	})

	t.Run("concurrent mixed operations", func(t *testing.T) {
		store := NewMemoryStore()

		var wg sync.WaitGroup
		numGoroutines := 50
		wg.Add(numGoroutines * 4)

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					pk := fmt.Sprintf("key-%d", j)
					value := []byte(fmt.Sprintf("writer-%d-value-%d", id, j))
					store.Put("movies", pk, value)
				}
			}(i)
		}

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					pk := fmt.Sprintf("key-%d", j)
					store.Get("movies", pk)
				}
			}(i)
		}

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					if j%10 == 0 {
						pk := fmt.Sprintf("key-%d", j)
						store.Delete("movies", pk)
					}
				}
			}(i)
		}

		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					store.List()
					time.Sleep(time.Microsecond)
				}
			}(i)
		}

		wg.Wait()

		if err := store.Put("movies", "final-key", []byte("final-value")); err != nil {
			t.Errorf("Store not functional after concurrent ops: %v", err)
		}

		value, err := store.Get("movies", "final-key")
		if err != nil {
			t.Errorf("Failed to get final key: %v", err)
		}
		if !bytes.Equal(value, []byte("final-value")) {
			t.Error("Final value incorrect after concurrent ops")
		}
	})

	t.Run("concurrent overwrites", func(t *testing.T) {
		store := NewMemoryStore()

		numWriters := 100
		numWrites := 100

		var wg sync.WaitGroup
		wg.Add(numWriters)

		for i := 0; i < numWriters; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numWrites; j++ {
					value := []byte(fmt.Sprintf("writer-%d-iteration-%d", id, j))
					if err := store.Put("movies", "contested", value); err != nil {
						t.Errorf("Writer %d failed: %v", id, err)
					}
				}
			}(i)
		}

		wg.Wait()

		value, err := store.Get("movies", "contested")
		if err != nil {
			t.Errorf("Key should exist after concurrent writes: %v", err)
		}
		if len(value) == 0 {
			t.Error("Value should not be empty after concurrent writes")
		}
	})
}

func TestStoreInterface(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)

	var store Store = NewMemoryStore()

	if err := store.Put("movies", "interface-key", []byte("interface-value")); err != nil {
		t.Fatalf("Interface Put failed: %v", err)
	}

	value, err := store.Get("movies", "interface-key")
	if err != nil {
		t.Fatalf("Interface Get failed: %v", err)
	}
	if !bytes.Equal(value, []byte("interface-value")) {
		t.Error("Interface Get returned wrong value")
	}

	keys := store.List()
	if len(keys) != 1 {
		t.Errorf("Interface List returned wrong count: %d", len(keys))
	}

	if err := store.Delete("movies", "interface-key"); err != nil {
		t.Fatalf("Interface Delete failed: %v", err)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	t.Run("stats tracking", func(t *testing.T) {
		store := NewMemoryStore()

		stats := store.Stats()
		if stats.Keys != 0 || stats.Bytes != 0 {
			t.Errorf("Initial stats should be zero, got keys=%d bytes=%d", stats.Keys, stats.Bytes)
		}

		testData := map[string][]byte{
			"1": []byte("value1"),   // 6 bytes
			"2": []byte("value22"),  // 7 bytes
			"3": []byte("value333"), // 8 bytes
		}
		for pk, v := range testData {
			store.Put("movies", pk, v)
		}

		stats = store.Stats()
		if stats.Keys != 3 {
			t.Errorf("Expected 3 keys, got %d", stats.Keys)
		}
		expectedBytes := 6 + 7 + 8
		if stats.Bytes != expectedBytes {
			t.Errorf("Expected %d bytes, got %d", expectedBytes, stats.Bytes)
		}

		store.Delete("movies", "2")

		stats = store.Stats()
		if stats.Keys != 2 {
			t.Errorf("Expected 2 keys after delete, got %d", stats.Keys)
		}
		expectedBytes = 6 + 8
		if stats.Bytes != expectedBytes {
			t.Errorf("Expected %d bytes after delete, got %d", expectedBytes, stats.Bytes)
		}
	})
}
