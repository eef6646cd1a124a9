package database

import (
	"fmt"
	"strings"

	"bookmarker/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options 数据库连接参数，DSN 非空时优先使用
type Options struct {
	Driver   string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Charset  string
	LogLevel logger.LogLevel
}

// Open 按驱动打开数据库并完成迁移
func Open(opts Options) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	connection, err := gorm.Open(dialector, &gorm.Config{
		// 将唯一索引冲突统一翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	if err := Migrate(connection); err != nil {
		return nil, err
	}
	return connection, nil
}

// Migrate 自动迁移表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Bookmark{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// MySQL 默认排序规则大小写不敏感，短码区分大小写
	if db.Dialector.Name() == "mysql" {
		err := db.Exec("ALTER TABLE bookmarks MODIFY short_url VARCHAR(3) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL").Error
		if err != nil {
			return fmt.Errorf("调整短码排序规则失败: %w", err)
		}
	}
	return nil
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	dsn := opts.DSN
	switch opts.Driver {
	case "mysql", "":
		if dsn == "" {
			charset := opts.Charset
			if charset == "" {
				charset = "utf8mb4"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
				opts.User, opts.Password, opts.Host, opts.Port, opts.Name, charset)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				opts.Host, opts.Port, opts.User, opts.Password, opts.Name)
		}
		return postgres.Open(dsn), nil
	case "sqlite":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		return sqlite.Open(sqliteForeignKeys(dsn)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
}

// sqliteForeignKeys 通过 DSN 为连接池中的每个连接开启外键约束
func sqliteForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=1"
	}
	return dsn + "?_foreign_keys=1"
}
